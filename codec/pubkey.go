// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const PubkeyLen = 32

// Pubkey represents the 32 byte address of an on-ledger account or program.
type Pubkey [PubkeyLen]byte

var EmptyPubkey = Pubkey{}

// ParsePubkey returns the Pubkey encoded by the base58 string s.
func ParsePubkey(s string) (Pubkey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPubkey, fmt.Errorf("%w: %s", ErrInvalidPubkey, err)
	}
	if len(b) != PubkeyLen {
		return EmptyPubkey, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubkey, PubkeyLen, len(b))
	}
	var p Pubkey
	copy(p[:], b)
	return p, nil
}

// MustPubkey parses s and panics on failure. Reserved for well-known
// program identifiers baked in at compile time.
func MustPubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String implements fmt.Stringer.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// MarshalText returns the base58 representation of p.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a base58-encoded pubkey.
func (p *Pubkey) UnmarshalText(input []byte) error {
	parsed, err := ParsePubkey(string(input))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Pubkey) Bytes() []byte {
	return p[:]
}
