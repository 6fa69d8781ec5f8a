// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "errors"

var (
	// ErrAccountNotFound marks an absent account. Expected prior to
	// initialization; callers must not treat it as a failure.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSubmission is a transport failure reaching or using the
	// endpoint.
	ErrSubmission = errors.New("submission failed")

	// ErrRejected wraps a logical rejection by the remote program,
	// e.g. CounterUnderflow on decrement below zero.
	ErrRejected = errors.New("transaction rejected")

	ErrBadAccountData  = errors.New("unexpected account data encoding")
	ErrSubscriptionEnd = errors.New("subscription connection lost")
)
