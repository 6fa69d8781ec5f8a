// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

import "github.com/ephemlabs/dualcounter/codec"

const (
	Name    = "dualcounter"
	Version = "v0.1.0"
)

// Well-known program identifiers. The counter program is deployed with
// the same id on the base ledger and on the rollup; delegation hands
// account ownership to the delegation program on the base ledger while
// the rollup keeps executing counter instructions against it.
var (
	CounterProgram    = codec.MustPubkey("49NcALUBrB68LN1QpgfHB4G4TP6UJuyb7EG9QuwxcTVy")
	DelegationProgram = codec.MustPubkey("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")
	MagicProgram      = codec.MustPubkey("Magic11111111111111111111111111111111111111")
	MagicContext      = codec.MustPubkey("MagicContext1111111111111111111111111111111")
	SystemProgram     = codec.MustPubkey("11111111111111111111111111111111")
)
