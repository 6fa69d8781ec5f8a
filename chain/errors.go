// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "errors"

var (
	ErrInvalidBlockhash = errors.New("invalid blockhash")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNoInstructions   = errors.New("transaction has no instructions")
	ErrMissingSigner    = errors.New("missing signer for required signature")
	ErrTooManyKeys      = errors.New("too many account keys")
	ErrMalformedTx      = errors.New("malformed transaction bytes")
)
