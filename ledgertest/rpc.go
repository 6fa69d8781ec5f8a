// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgertest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/mr-tron/base58"

	"github.com/ephemlabs/dualcounter/codec"
)

type rpcRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (l *Ledger) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		result interface{}
		rerr   *rpcError
	)
	switch req.Method {
	case "getAccountInfo":
		result, rerr = l.getAccountInfo(w, req.Params)
		if result == nil && rerr == nil {
			return // transport failure already written
		}
	case "getLatestBlockhash":
		hash := make([]byte, 32)
		_, _ = rand.Read(hash)
		result = map[string]interface{}{
			"context": map[string]uint64{"slot": l.currentSlot()},
			"value": map[string]interface{}{
				"blockhash":            base58.Encode(hash),
				"lastValidBlockHeight": l.currentSlot() + 150,
			},
		}
	case "sendTransaction":
		result, rerr = l.sendTransaction(req.Params)
	case "getSignatureStatuses":
		result = l.signatureStatuses(req.Params)
	default:
		rerr = &rpcError{Code: -32601, Message: "method not found"}
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (l *Ledger) currentSlot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// accountValue renders an account in getAccountInfo/notification shape.
func accountValue(acct *Account) interface{} {
	if acct == nil {
		return nil
	}
	return map[string]interface{}{
		"data":     []string{base64.StdEncoding.EncodeToString(acct.Data), "base64"},
		"owner":    acct.Owner.String(),
		"lamports": uint64(1_000_000),
	}
}

func (l *Ledger) getAccountInfo(w http.ResponseWriter, params []json.RawMessage) (interface{}, *rpcError) {
	l.mu.Lock()
	if l.failFetch {
		l.failFetch = false
		l.mu.Unlock()
		http.Error(w, "injected transport failure", http.StatusBadGateway)
		return nil, nil
	}
	l.mu.Unlock()

	if len(params) == 0 {
		return nil, &rpcError{Code: -32602, Message: "missing address"}
	}
	var addrStr string
	if err := json.Unmarshal(params[0], &addrStr); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	addr, err := codec.ParsePubkey(addrStr)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}

	l.mu.Lock()
	acct := l.accts[addr]
	slot := l.slot
	l.mu.Unlock()
	return map[string]interface{}{
		"context": map[string]uint64{"slot": slot},
		"value":   accountValue(acct),
	}, nil
}

func (l *Ledger) signatureStatuses(params []json.RawMessage) interface{} {
	statuses := []interface{}{}
	if len(params) > 0 {
		var sigs []string
		_ = json.Unmarshal(params[0], &sigs)
		l.mu.Lock()
		for _, sig := range sigs {
			if l.statuses[sig] {
				statuses = append(statuses, map[string]interface{}{
					"confirmationStatus": "finalized",
					"err":                nil,
				})
			} else {
				statuses = append(statuses, nil)
			}
		}
		l.mu.Unlock()
	}
	return map[string]interface{}{
		"context": map[string]uint64{"slot": l.currentSlot()},
		"value":   statuses,
	}
}
