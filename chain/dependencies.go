// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "github.com/ephemlabs/dualcounter/codec"

// Signer turns a compiled message into a signature. Implemented by the
// auth package for the primary credential and for session credentials.
type Signer interface {
	PublicKey() codec.Pubkey
	Sign(msg []byte) (Signature, error)
}

// Accounts carries everything an action needs to assemble its ordered
// account list.
type Accounts struct {
	Counter codec.Pubkey
	Signer  codec.Pubkey

	// SessionToken is attached to update instructions when a session
	// credential is signing instead of the authority.
	SessionToken *codec.Pubkey

	// Validator optionally pins delegation to a specific rollup validator.
	Validator *codec.Pubkey
}

// Action describes one remote program method: a stable identifier for
// error messages, the instruction payload, and the ordered accounts the
// method touches.
type Action interface {
	Method() string
	Data() ([]byte, error)
	Keys(a Accounts) ([]AccountMeta, error)
}
