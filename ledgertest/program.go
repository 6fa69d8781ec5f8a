// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgertest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/near/borsh-go"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/consts"
)

var (
	discInitialize = accounts.Discriminator("global", "initialize")
	discIncrement  = accounts.Discriminator("global", "increment")
	discDecrement  = accounts.Discriminator("global", "decrement")
	discSet        = accounts.Discriminator("global", "set")
	discDelegate   = accounts.Discriminator("global", "delegate")
	discCommit     = accounts.Discriminator("global", "commit")
	discUndelegate = accounts.Discriminator("global", "undelegate")
)

func (l *Ledger) sendTransaction(params []json.RawMessage) (interface{}, *rpcError) {
	if len(params) == 0 {
		return nil, &rpcError{Code: -32602, Message: "missing transaction"}
	}
	var encoded string
	if err := json.Unmarshal(params[0], &encoded); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	wire, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	tx, err := chain.ParseTransaction(wire)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	if len(tx.Instructions) == 0 {
		return nil, &rpcError{Code: -32602, Message: "empty transaction"}
	}

	if rerr := l.execute(tx.Instructions[0]); rerr != nil {
		return nil, rerr
	}
	sig := tx.Signature().String()
	l.mu.Lock()
	l.statuses[sig] = true
	l.mu.Unlock()
	return sig, nil
}

// execute applies one counter program instruction, replicating state to
// the linked ledger for delegation-related methods.
func (l *Ledger) execute(ix chain.Instruction) *rpcError {
	if len(ix.Data) < accounts.DiscriminatorLen {
		return &rpcError{Code: -32602, Message: "instruction data too short"}
	}
	disc := ix.Data[:accounts.DiscriminatorLen]
	args := ix.Data[accounts.DiscriminatorLen:]

	switch {
	case bytes.Equal(disc, discInitialize):
		return l.runInitialize(ix)
	case bytes.Equal(disc, discIncrement):
		return l.runUpdate(ix, func(c *accounts.Counter) *rpcError {
			c.Count++
			if c.Count > 1000 {
				c.Count = 0
			}
			return nil
		})
	case bytes.Equal(disc, discDecrement):
		return l.runUpdate(ix, func(c *accounts.Counter) *rpcError {
			if c.Count == 0 {
				return &rpcError{Code: -32002, Message: "custom program error: CounterUnderflow: Counter cannot go below zero"}
			}
			c.Count--
			return nil
		})
	case bytes.Equal(disc, discSet):
		var value uint64
		if err := borsh.Deserialize(&value, args); err != nil {
			return &rpcError{Code: -32602, Message: err.Error()}
		}
		return l.runUpdate(ix, func(c *accounts.Counter) *rpcError {
			c.Count = value
			return nil
		})
	case bytes.Equal(disc, discDelegate):
		return l.runDelegate(ix)
	case bytes.Equal(disc, discCommit):
		return l.runCommit(ix, false)
	case bytes.Equal(disc, discUndelegate):
		return l.runCommit(ix, true)
	default:
		return &rpcError{Code: -32002, Message: "unknown instruction"}
	}
}

func (l *Ledger) runInitialize(ix chain.Instruction) *rpcError {
	if len(ix.Keys) < 2 {
		return &rpcError{Code: -32602, Message: "initialize requires counter and authority"}
	}
	addr := ix.Keys[0].Pubkey
	authority := ix.Keys[1].Pubkey

	l.mu.Lock()
	if _, ok := l.accts[addr]; !ok {
		data, err := accounts.EncodeCounter(&accounts.Counter{Count: 0, Authority: authority})
		if err != nil {
			l.mu.Unlock()
			return &rpcError{Code: -32603, Message: err.Error()}
		}
		l.accts[addr] = &Account{Owner: consts.CounterProgram, Data: data}
	}
	l.slot++
	l.mu.Unlock()
	l.notify(addr)
	return nil
}

func (l *Ledger) runUpdate(ix chain.Instruction, apply func(*accounts.Counter) *rpcError) *rpcError {
	if len(ix.Keys) < 2 {
		return &rpcError{Code: -32602, Message: "update requires counter and signer"}
	}
	addr := ix.Keys[0].Pubkey
	signer := ix.Keys[1].Pubkey

	l.mu.Lock()
	acct, ok := l.accts[addr]
	if !ok {
		l.mu.Unlock()
		return &rpcError{Code: -32002, Message: "custom program error: AccountNotInitialized"}
	}
	counter, err := accounts.DecodeCounter(acct.Data)
	if err != nil {
		l.mu.Unlock()
		return &rpcError{Code: -32002, Message: err.Error()}
	}
	// a foreign signer must present a session token account
	if signer != counter.Authority && len(ix.Keys) < 3 {
		l.mu.Unlock()
		return &rpcError{Code: -32002, Message: "custom program error: InvalidAuth: Invalid authentication"}
	}
	if rerr := apply(counter); rerr != nil {
		l.mu.Unlock()
		return rerr
	}
	data, err := accounts.EncodeCounter(counter)
	if err != nil {
		l.mu.Unlock()
		return &rpcError{Code: -32603, Message: err.Error()}
	}
	acct.Data = data
	l.slot++
	l.mu.Unlock()
	l.notify(addr)
	return nil
}

// runDelegate hands the account to the delegation program locally and
// replicates the domain bytes to the linked rollup.
func (l *Ledger) runDelegate(ix chain.Instruction) *rpcError {
	if len(ix.Keys) < 2 {
		return &rpcError{Code: -32602, Message: "delegate requires payer and pda"}
	}
	addr := ix.Keys[1].Pubkey

	l.mu.Lock()
	acct, ok := l.accts[addr]
	if !ok {
		l.mu.Unlock()
		return &rpcError{Code: -32002, Message: "custom program error: AccountNotInitialized"}
	}
	acct.Owner = consts.DelegationProgram
	data := append([]byte{}, acct.Data...)
	l.slot++
	l.mu.Unlock()
	l.notify(addr)

	if l.counterpart != nil {
		l.counterpart.SetAccount(addr, &Account{Owner: consts.CounterProgram, Data: data})
	}
	return nil
}

// runCommit pushes the local account bytes to the linked base ledger;
// with [undelegate] it also returns base ownership to the counter
// program and drops the local copy.
func (l *Ledger) runCommit(ix chain.Instruction, undelegate bool) *rpcError {
	if len(ix.Keys) < 2 {
		return &rpcError{Code: -32602, Message: "commit requires payer and counter"}
	}
	addr := ix.Keys[1].Pubkey

	l.mu.Lock()
	acct, ok := l.accts[addr]
	if !ok {
		l.mu.Unlock()
		return &rpcError{Code: -32002, Message: "custom program error: AccountNotInitialized"}
	}
	data := append([]byte{}, acct.Data...)
	if undelegate {
		delete(l.accts, addr)
	}
	l.slot++
	l.mu.Unlock()
	if undelegate {
		l.notify(addr)
	}

	if l.counterpart != nil {
		owner := consts.DelegationProgram
		if undelegate {
			owner = consts.CounterProgram
		}
		l.counterpart.SetAccount(addr, &Account{Owner: owner, Data: data})
	}
	return nil
}
