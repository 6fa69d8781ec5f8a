// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/atomic"
)

const requestTimeout = 30 * time.Second

// RPCError is a logical error returned by the remote endpoint, as
// opposed to a transport failure reaching it.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// EndpointRequester issues JSON-RPC 2.0 requests against a single
// endpoint.
type EndpointRequester struct {
	uri    string
	name   string
	client *http.Client

	requestID atomic.Uint64
}

func NewEndpointRequester(uri string, name string) *EndpointRequester {
	return &EndpointRequester{
		uri:    uri,
		name:   name,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type rpcRequest struct {
	Version string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// SendRequest issues [method] with positional [params] and decodes the
// result into [reply]. Remote logical errors are returned as *RPCError;
// anything else is a transport failure.
func (r *EndpointRequester) SendRequest(ctx context.Context, method string, params []interface{}, reply interface{}) error {
	body, err := json.Marshal(&rpcRequest{
		Version: "2.0",
		ID:      r.requestID.Inc(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSubmission, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSubmission, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrSubmission, r.name, resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%w: %s", ErrSubmission, err)
	}
	if parsed.Error != nil {
		return parsed.Error
	}
	if reply == nil {
		return nil
	}
	return json.Unmarshal(parsed.Result, reply)
}
