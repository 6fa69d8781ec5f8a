// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import "errors"

var (
	// ErrNotReady marks a missing precondition (no known address, no
	// connected credential). Recovered locally by refusing the call.
	ErrNotReady = errors.New("engine not ready")

	// ErrNotDelegated marks a rollup-targeted call while the account is
	// not delegated.
	ErrNotDelegated = errors.New("account is not delegated")

	ErrAlreadyStarted = errors.New("engine already started")
	ErrClosed         = errors.New("engine closed")
)
