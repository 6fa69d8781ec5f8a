// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import "errors"

var (
	ErrAccountTooShort  = errors.New("account data too short")
	ErrBadDiscriminator = errors.New("unexpected account discriminator")
	ErrMalformedAccount = errors.New("malformed account data")
)
