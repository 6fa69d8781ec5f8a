// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/consts"
)

var _ chain.Action = (*Initialize)(nil)

// Initialize creates the counter account with count zero, owned by the
// signing authority.
type Initialize struct{}

func (*Initialize) Method() string {
	return "initialize"
}

func (*Initialize) Data() ([]byte, error) {
	return instructionData("initialize", nil), nil
}

func (*Initialize) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return []chain.AccountMeta{
		{Pubkey: a.Counter, IsWritable: true},
		{Pubkey: a.Signer, IsSigner: true, IsWritable: true},
		{Pubkey: consts.SystemProgram},
	}, nil
}
