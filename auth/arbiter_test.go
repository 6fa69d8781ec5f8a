// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ephemlabs/dualcounter/codec"
)

func randomPubkey(t *testing.T) codec.Pubkey {
	t.Helper()
	var pk codec.Pubkey
	_, err := rand.Read(pk[:])
	require.NoError(t, err)
	return pk
}

func newSigner(t *testing.T) *ED25519 {
	t.Helper()
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	return NewED25519(priv)
}

func TestSelectNoSession(t *testing.T) {
	require := require.New(t)

	primary := newSigner(t)
	a := NewArbiter(primary, nil)

	sel := a.Select(randomPubkey(t))
	require.False(sel.Session())
	require.Equal(primary.PublicKey(), sel.FeePayer)
	require.Equal(primary, sel.Signer)
	require.Nil(sel.SessionToken)
}

func TestSelectNoCredential(t *testing.T) {
	require := require.New(t)

	a := NewArbiter(nil, nil)
	var sel Selection
	require.NotPanics(func() { sel = a.Select(randomPubkey(t)) })
	require.Nil(sel.Signer)
	require.False(sel.Session())
	require.Equal(codec.EmptyPubkey, sel.FeePayer)
}

func TestSelectLiveSession(t *testing.T) {
	require := require.New(t)

	primary := newSigner(t)
	session := newSigner(t)
	target := randomPubkey(t)
	token := randomPubkey(t)
	a := NewArbiter(primary, SessionProviderFunc(func() *SessionCredential {
		return &SessionCredential{
			Token:         token,
			Signer:        session,
			TargetProgram: target,
			Expiry:        time.Now().Add(time.Hour),
		}
	}))

	sel := a.Select(target)
	require.True(sel.Session())
	require.Equal(session.PublicKey(), sel.FeePayer)
	require.Equal(token, *sel.SessionToken)
}

func TestSelectExpiredSessionFallsBack(t *testing.T) {
	require := require.New(t)

	primary := newSigner(t)
	session := newSigner(t)
	target := randomPubkey(t)
	expiry := time.Now().Add(time.Hour)
	a := NewArbiter(primary, SessionProviderFunc(func() *SessionCredential {
		return &SessionCredential{
			Token:         randomPubkey(t),
			Signer:        session,
			TargetProgram: target,
			Expiry:        expiry,
		}
	}))
	a.now = func() time.Time { return expiry.Add(time.Second) }

	sel := a.Select(target)
	require.False(sel.Session())
	require.Equal(primary.PublicKey(), sel.FeePayer)
}

func TestSelectWrongTargetFallsBack(t *testing.T) {
	require := require.New(t)

	primary := newSigner(t)
	session := newSigner(t)
	a := NewArbiter(primary, SessionProviderFunc(func() *SessionCredential {
		return &SessionCredential{
			Token:         randomPubkey(t),
			Signer:        session,
			TargetProgram: randomPubkey(t),
			Expiry:        time.Now().Add(time.Hour),
		}
	}))

	sel := a.Select(randomPubkey(t))
	require.False(sel.Session())
	require.Equal(primary.PublicKey(), sel.FeePayer)
}

func TestSelectEvaluatedFresh(t *testing.T) {
	require := require.New(t)

	primary := newSigner(t)
	session := newSigner(t)
	target := randomPubkey(t)
	cred := &SessionCredential{
		Token:         randomPubkey(t),
		Signer:        session,
		TargetProgram: target,
		Expiry:        time.Now().Add(time.Hour),
	}
	a := NewArbiter(primary, SessionProviderFunc(func() *SessionCredential {
		return cred
	}))

	require.True(a.Select(target).Session())

	// Credential lapses between calls; the next selection sees it.
	cred.Expiry = time.Now().Add(-time.Second)
	require.False(a.Select(target).Session())
}

func TestSessionCredentialLive(t *testing.T) {
	require := require.New(t)

	target := randomPubkey(t)
	now := time.Now()

	var nilCred *SessionCredential
	require.False(nilCred.Live(target, now))
	require.False((&SessionCredential{}).Live(target, now))

	cred := &SessionCredential{
		Signer:        newSigner(t),
		TargetProgram: target,
		Expiry:        now.Add(time.Minute),
	}
	require.True(cred.Live(target, now))
	require.False(cred.Live(randomPubkey(t), now))
	require.False(cred.Live(target, cred.Expiry))
}

func TestVerify(t *testing.T) {
	require := require.New(t)

	s := newSigner(t)
	msg := []byte("counter message")
	sig, err := s.Sign(msg)
	require.NoError(err)
	require.True(Verify(msg, s.PublicKey(), sig))
	require.False(Verify([]byte("other"), s.PublicKey(), sig))
	require.False(Verify(msg, randomPubkey(t), sig))
}
