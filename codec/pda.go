// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"crypto/sha256"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/curve"
)

const (
	MaxSeeds   = 16
	MaxSeedLen = 32

	pdaMarker = "ProgramDerivedAddress"
)

// CreateProgramAddress derives the sub-account address for [seeds] under
// [program]. The result must not be a valid curve point (a derived address
// can never have a corresponding private key); on-curve results are
// rejected so callers can scan for a usable bump.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return EmptyPubkey, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return EmptyPubkey, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var p Pubkey
	copy(p[:], h.Sum(nil))
	if onCurve(p) {
		return EmptyPubkey, fmt.Errorf("%w: address falls on the curve", ErrInvalidBytes)
	}
	return p, nil
}

// FindProgramAddress scans bump seeds from 255 down to 0 and returns the
// first off-curve address for [seeds] under [program], along with the
// bump that produced it. Deterministic and stable for fixed inputs.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	bumped := make([][]byte, len(seeds)+1)
	copy(bumped, seeds)
	for bump := 255; bump >= 0; bump-- {
		bumped[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(bumped, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return EmptyPubkey, 0, ErrNoViableBump
}

func onCurve(p Pubkey) bool {
	var compressed curve.CompressedEdwardsY
	if _, err := compressed.SetBytes(p[:]); err != nil {
		return false
	}
	var point curve.EdwardsPoint
	_, err := point.SetCompressedY(&compressed)
	return err == nil
}
