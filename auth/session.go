// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"time"

	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
)

// SessionCredential is a short-lived secondary signer scoped to one
// target program. It is issued and owned by an external collaborator;
// this package only reads it.
type SessionCredential struct {
	// Token is the on-ledger session token account proving the signer
	// acts for the authority.
	Token codec.Pubkey

	Signer        chain.Signer
	TargetProgram codec.Pubkey
	Expiry        time.Time
}

// Live reports whether the credential can still sign for [target] at
// [now]. Expiry is checked on every call because validity can lapse
// between calls.
func (s *SessionCredential) Live(target codec.Pubkey, now time.Time) bool {
	if s == nil || s.Signer == nil {
		return false
	}
	return s.TargetProgram == target && now.Before(s.Expiry)
}

// SessionProvider exposes the current session credential, if any. The
// session-issuance subsystem implements this.
type SessionProvider interface {
	SessionCredential() *SessionCredential
}

// SessionProviderFunc adapts a function to a SessionProvider.
type SessionProviderFunc func() *SessionCredential

func (f SessionProviderFunc) SessionCredential() *SessionCredential {
	return f()
}

// NoSession is a provider that never yields a credential.
var NoSession = SessionProviderFunc(func() *SessionCredential { return nil })
