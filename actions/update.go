// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/near/borsh-go"

	"github.com/ephemlabs/dualcounter/chain"
)

var (
	_ chain.Action = (*Increment)(nil)
	_ chain.Action = (*Decrement)(nil)
	_ chain.Action = (*Set)(nil)
)

// updateKeys is shared by every mutating counter method: the counter
// account, the acting signer, and (when a session credential signs) the
// session token proving the signer acts for the authority.
func updateKeys(a chain.Accounts) ([]chain.AccountMeta, error) {
	keys := []chain.AccountMeta{
		{Pubkey: a.Counter, IsWritable: true},
		{Pubkey: a.Signer, IsSigner: true, IsWritable: true},
	}
	if a.SessionToken != nil {
		keys = append(keys, chain.AccountMeta{Pubkey: *a.SessionToken})
	}
	return keys, nil
}

// Increment adds one to the counter value.
type Increment struct{}

func (*Increment) Method() string { return "increment" }

func (*Increment) Data() ([]byte, error) {
	return instructionData("increment", nil), nil
}

func (*Increment) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return updateKeys(a)
}

// Decrement subtracts one from the counter value. The remote program
// rejects it with CounterUnderflow at zero.
type Decrement struct{}

func (*Decrement) Method() string { return "decrement" }

func (*Decrement) Data() ([]byte, error) {
	return instructionData("decrement", nil), nil
}

func (*Decrement) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return updateKeys(a)
}

// Set overwrites the counter value.
type Set struct {
	Value uint64
}

func (*Set) Method() string { return "set" }

func (s *Set) Data() ([]byte, error) {
	args, err := borsh.Serialize(s.Value)
	if err != nil {
		return nil, err
	}
	return instructionData("set", args), nil
}

func (*Set) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return updateKeys(a)
}
