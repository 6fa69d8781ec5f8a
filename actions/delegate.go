// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/consts"
)

var _ chain.Action = (*Delegate)(nil)

// Delegate transfers ownership of the counter account to the delegation
// program so the rollup can execute updates on it. An optional validator
// pins the delegation to a specific rollup operator.
type Delegate struct{}

func (*Delegate) Method() string { return "delegate" }

func (*Delegate) Data() ([]byte, error) {
	return instructionData("delegate", nil), nil
}

func (*Delegate) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	buffer, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("buffer"), a.Counter[:]}, consts.CounterProgram)
	if err != nil {
		return nil, err
	}
	record, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("delegation"), a.Counter[:]}, consts.DelegationProgram)
	if err != nil {
		return nil, err
	}
	metadata, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("delegation-metadata"), a.Counter[:]}, consts.DelegationProgram)
	if err != nil {
		return nil, err
	}

	keys := []chain.AccountMeta{
		{Pubkey: a.Signer, IsSigner: true, IsWritable: true},
		{Pubkey: a.Counter, IsWritable: true},
		{Pubkey: consts.CounterProgram},
		{Pubkey: buffer, IsWritable: true},
		{Pubkey: record, IsWritable: true},
		{Pubkey: metadata, IsWritable: true},
		{Pubkey: consts.DelegationProgram},
		{Pubkey: consts.SystemProgram},
	}
	if a.Validator != nil {
		keys = append(keys, chain.AccountMeta{Pubkey: *a.Validator})
	}
	return keys, nil
}
