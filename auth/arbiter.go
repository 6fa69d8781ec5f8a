// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"time"

	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
)

// Selection is the outcome of one signer arbitration: who signs, who
// pays, and the session token to attach when a session signs.
type Selection struct {
	Signer       chain.Signer
	FeePayer     codec.Pubkey
	SessionToken *codec.Pubkey
}

// Session reports whether a session credential was selected.
func (s Selection) Session() bool {
	return s.SessionToken != nil
}

// Arbiter chooses between the primary credential and an active session
// credential per mutating call.
type Arbiter struct {
	primary  chain.Signer
	sessions SessionProvider
	now      func() time.Time
}

func NewArbiter(primary chain.Signer, sessions SessionProvider) *Arbiter {
	if sessions == nil {
		sessions = NoSession
	}
	return &Arbiter{
		primary:  primary,
		sessions: sessions,
		now:      time.Now,
	}
}

// Select resolves the signer for one call targeting [program]. A live
// session credential signs and pays (the session is pre-funded by its
// issuance step); otherwise the primary does both. Evaluated fresh on
// every call, never cached.
func (a *Arbiter) Select(program codec.Pubkey) Selection {
	if cred := a.sessions.SessionCredential(); cred.Live(program, a.now()) {
		token := cred.Token
		return Selection{
			Signer:       cred.Signer,
			FeePayer:     cred.Signer.PublicKey(),
			SessionToken: &token,
		}
	}
	if a.primary == nil {
		// no credential connected; callers refuse the operation
		return Selection{}
	}
	return Selection{
		Signer:   a.primary,
		FeePayer: a.primary.PublicKey(),
	}
}

// Primary returns the primary credential's signer.
func (a *Arbiter) Primary() chain.Signer {
	return a.primary
}
