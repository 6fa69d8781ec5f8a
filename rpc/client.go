// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
)

const waitSleep = 500 * time.Millisecond

// Commitment is the confirmation level requested from the ledger.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

var commitmentRank = map[Commitment]int{
	CommitmentProcessed: 0,
	CommitmentConfirmed: 1,
	CommitmentFinalized: 2,
}

// SubmitOptions tune one transaction submission.
type SubmitOptions struct {
	// SkipPreflight skips the simulation pass before submission. Rollup
	// ledgers reject quickly and cheaply, so interactive rollup calls
	// set this for latency.
	SkipPreflight bool

	Commitment Commitment
}

// AccountInfo is the raw view of an account: its owning program and its
// undecoded bytes.
type AccountInfo struct {
	Owner codec.Pubkey
	Data  []byte
	Slot  uint64
}

// Client is a thin capability over a single ledger. Two instances exist
// in a running engine: one bound to the base ledger, one to the rollup.
type Client struct {
	name      string
	requester *EndpointRequester
	wsURI     string
	log       *zap.Logger
}

// NewClient returns a client for the ledger at [uri], with account
// subscriptions served from [wsURI].
func NewClient(name string, uri string, wsURI string, log *zap.Logger) *Client {
	return &Client{
		name:      name,
		requester: NewEndpointRequester(strings.TrimSuffix(uri, "/"), name),
		wsURI:     wsURI,
		log:       log,
	}
}

func (c *Client) Name() string {
	return c.name
}

type accountInfoValue struct {
	Data     []string `json:"data"`
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

type accountInfoReply struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *accountInfoValue `json:"value"`
}

// Account fetches the raw account at [addr]. Returns ErrAccountNotFound
// when the account does not exist yet.
func (c *Client) Account(ctx context.Context, addr codec.Pubkey) (*AccountInfo, error) {
	resp := new(accountInfoReply)
	err := c.requester.SendRequest(ctx,
		"getAccountInfo",
		[]interface{}{
			addr.String(),
			map[string]interface{}{"encoding": "base64", "commitment": CommitmentConfirmed},
		},
		resp,
	)
	if err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrAccountNotFound, addr, c.name)
	}
	owner, err := codec.ParsePubkey(resp.Value.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %s", ErrBadAccountData, err)
	}
	if len(resp.Value.Data) < 2 || resp.Value.Data[1] != "base64" {
		return nil, fmt.Errorf("%w: want base64", ErrBadAccountData)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadAccountData, err)
	}
	return &AccountInfo{Owner: owner, Data: data, Slot: resp.Context.Slot}, nil
}

// Counter fetches and decodes the domain account at [addr].
func (c *Client) Counter(ctx context.Context, addr codec.Pubkey) (*accounts.Counter, error) {
	info, err := c.Account(ctx, addr)
	if err != nil {
		return nil, err
	}
	return accounts.DecodeCounter(info.Data)
}

// Owner reads only the account's current owning program, without the
// domain decode. Used by the delegation status check.
func (c *Client) Owner(ctx context.Context, addr codec.Pubkey) (codec.Pubkey, error) {
	info, err := c.Account(ctx, addr)
	if err != nil {
		return codec.EmptyPubkey, err
	}
	return info.Owner, nil
}

type latestBlockhashReply struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// LatestBlockhash fetches the recent-block anchor required to build a
// submittable transaction.
func (c *Client) LatestBlockhash(ctx context.Context) (chain.Blockhash, error) {
	resp := new(latestBlockhashReply)
	err := c.requester.SendRequest(ctx,
		"getLatestBlockhash",
		[]interface{}{map[string]interface{}{"commitment": CommitmentConfirmed}},
		resp,
	)
	if err != nil {
		return chain.EmptyBlockhash, err
	}
	return chain.ParseBlockhash(resp.Value.Blockhash)
}

// SubmitTx submits the signed transaction and returns its signature.
// Logical rejection by the remote program surfaces as ErrRejected with
// the program's message verbatim; everything else is ErrSubmission.
func (c *Client) SubmitTx(ctx context.Context, tx *chain.Transaction, opts SubmitOptions) (chain.Signature, error) {
	wire, err := tx.Bytes()
	if err != nil {
		return chain.EmptySignature, err
	}
	var sig string
	err = c.requester.SendRequest(ctx,
		"sendTransaction",
		[]interface{}{
			base64.StdEncoding.EncodeToString(wire),
			map[string]interface{}{
				"encoding":            "base64",
				"skipPreflight":       opts.SkipPreflight,
				"preflightCommitment": opts.Commitment,
			},
		},
		&sig,
	)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return chain.EmptySignature, fmt.Errorf("%w: %s", ErrRejected, rpcErr.Message)
		}
		return chain.EmptySignature, err
	}
	return chain.ParseSignature(sig)
}

type signatureStatusesReply struct {
	Value []*struct {
		ConfirmationStatus Commitment      `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	} `json:"value"`
}

// AwaitSignature polls until [sig] reaches [commitment] or ctx is done.
// A status carrying a program error resolves to ErrRejected.
func (c *Client) AwaitSignature(ctx context.Context, sig chain.Signature, commitment Commitment) error {
	return Wait(ctx, func(ctx context.Context) (bool, error) {
		resp := new(signatureStatusesReply)
		err := c.requester.SendRequest(ctx,
			"getSignatureStatuses",
			[]interface{}{
				[]string{sig.String()},
				map[string]interface{}{"searchTransactionHistory": true},
			},
			resp,
		)
		if err != nil {
			return false, err
		}
		if len(resp.Value) == 0 || resp.Value[0] == nil {
			return false, nil
		}
		status := resp.Value[0]
		if len(status.Err) > 0 && string(status.Err) != "null" {
			return false, fmt.Errorf("%w: %s", ErrRejected, status.Err)
		}
		return commitmentRank[status.ConfirmationStatus] >= commitmentRank[commitment], nil
	})
}

// CommitmentSignature resolves the base-ledger signature correlated to a
// rollup commit. Best-effort: environments without the extension (e.g. a
// local test validator) return empty with no error.
func (c *Client) CommitmentSignature(ctx context.Context, rollupSig chain.Signature) (string, error) {
	var sig string
	err := c.requester.SendRequest(ctx,
		"getCommitmentSignature",
		[]interface{}{rollupSig.String()},
		&sig,
	)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			c.log.Debug("commitment signature unavailable",
				zap.String("ledger", c.name),
				zap.Error(rpcErr),
			)
			return "", nil
		}
		return "", err
	}
	return sig, nil
}

// Wait polls [check] until it exits, errors, or ctx is done.
func Wait(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	for ctx.Err() == nil {
		exit, err := check(ctx)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
		select {
		case <-time.After(waitSleep):
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}
