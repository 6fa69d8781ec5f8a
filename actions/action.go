// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"github.com/ephemlabs/dualcounter/accounts"
)

// instructionData prefixes the method discriminator to the borsh-encoded
// arguments, if any. Argument-less methods are just the discriminator.
func instructionData(method string, args []byte) []byte {
	return append(accounts.Discriminator("global", method), args...)
}
