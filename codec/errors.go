// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import "errors"

var (
	ErrInvalidPubkey = errors.New("invalid pubkey")
	ErrTooManySeeds  = errors.New("too many seeds")
	ErrSeedTooLong   = errors.New("seed exceeds max length")
	ErrNoViableBump  = errors.New("unable to find a viable program address bump")
	ErrInvalidBytes  = errors.New("invalid bytes")
)
