// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const BlockhashLen = 32

// Blockhash is the recent-block anchor a transaction is built against.
// A transaction is only valid while its anchor is recent on the ledger
// it is submitted to.
type Blockhash [BlockhashLen]byte

var EmptyBlockhash = Blockhash{}

func ParseBlockhash(s string) (Blockhash, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyBlockhash, fmt.Errorf("%w: %s", ErrInvalidBlockhash, err)
	}
	if len(b) != BlockhashLen {
		return EmptyBlockhash, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidBlockhash, BlockhashLen, len(b))
	}
	var h Blockhash
	copy(h[:], b)
	return h, nil
}

func (h Blockhash) String() string {
	return base58.Encode(h[:])
}
