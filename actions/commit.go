// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/consts"
)

var (
	_ chain.Action = (*Commit)(nil)
	_ chain.Action = (*Undelegate)(nil)
)

// commitKeys is shared by commit and undelegate: both route through the
// magic context/program pair that pushes rollup state to the base ledger.
func commitKeys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return []chain.AccountMeta{
		{Pubkey: a.Signer, IsSigner: true, IsWritable: true},
		{Pubkey: a.Counter, IsWritable: true},
		{Pubkey: consts.MagicContext, IsWritable: true},
		{Pubkey: consts.MagicProgram},
	}, nil
}

// Commit persists the rollup's current counter state to the base ledger
// without ending delegation.
type Commit struct{}

func (*Commit) Method() string { return "commit" }

func (*Commit) Data() ([]byte, error) {
	return instructionData("commit", nil), nil
}

func (*Commit) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return commitKeys(a)
}

// Undelegate commits and returns sole authority to the base ledger.
type Undelegate struct{}

func (*Undelegate) Method() string { return "undelegate" }

func (*Undelegate) Data() ([]byte, error) {
	return instructionData("undelegate", nil), nil
}

func (*Undelegate) Keys(a chain.Accounts) ([]chain.AccountMeta, error) {
	return commitKeys(a)
}
