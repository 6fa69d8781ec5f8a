// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/consts"
)

const DiscriminatorLen = 8

// Counter is the domain account being counted. The on-ledger layout is
// an 8 byte account discriminator followed by the borsh encoding of the
// struct fields.
type Counter struct {
	Count     uint64       `json:"count"`
	Authority codec.Pubkey `json:"authority"`
}

var CounterDiscriminator = Discriminator("account", "Counter")

// Discriminator returns the 8 byte tag identifying an account type or
// instruction on the wire.
func Discriminator(namespace string, name string) []byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	return h[:DiscriminatorLen]
}

// DecodeCounter parses raw account bytes into a Counter.
func DecodeCounter(data []byte) (*Counter, error) {
	if len(data) < DiscriminatorLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrAccountTooShort, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLen], CounterDiscriminator) {
		return nil, ErrBadDiscriminator
	}
	c := new(Counter)
	if err := borsh.Deserialize(c, data[DiscriminatorLen:]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedAccount, err)
	}
	return c, nil
}

// EncodeCounter produces the on-ledger byte layout for c.
func EncodeCounter(c *Counter) ([]byte, error) {
	body, err := borsh.Serialize(*c)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, CounterDiscriminator...), body...), nil
}

// CounterAddress derives the deterministic counter sub-account for
// [authority] under the counter program. Pure; callers memoize.
func CounterAddress(authority codec.Pubkey) (codec.Pubkey, uint8, error) {
	return codec.FindProgramAddress([][]byte{authority[:]}, consts.CounterProgram)
}
