// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"crypto/ed25519"

	"github.com/hdevalence/ed25519consensus"

	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
)

const (
	// PrivateKeySeedLen is defined because ed25519.PrivateKey
	// is formatted as privateKey = seed|publicKey. We use this const
	// to extract the publicKey below.
	PrivateKeyLen     = ed25519.PrivateKeySize
	PrivateKeySeedLen = ed25519.SeedSize
)

type PrivateKey [PrivateKeyLen]byte

var EmptyPrivateKey = PrivateKey{}

// GeneratePrivateKey returns a fresh ed25519 PrivateKey.
func GeneratePrivateKey() (PrivateKey, error) {
	_, k, err := ed25519.GenerateKey(nil)
	if err != nil {
		return EmptyPrivateKey, err
	}
	return PrivateKey(k), nil
}

// PublicKey returns the Pubkey associated with p. The public key is the
// last 32 bytes of p.
func (p PrivateKey) PublicKey() codec.Pubkey {
	return codec.Pubkey(p[PrivateKeySeedLen:])
}

var _ chain.Signer = (*ED25519)(nil)

// ED25519 signs messages with a single held private key. Used for the
// primary credential and for session credentials alike.
type ED25519 struct {
	priv PrivateKey
}

func NewED25519(priv PrivateKey) *ED25519 {
	return &ED25519{priv: priv}
}

func (e *ED25519) PublicKey() codec.Pubkey {
	return e.priv.PublicKey()
}

func (e *ED25519) Sign(msg []byte) (chain.Signature, error) {
	sig := ed25519.Sign(e.priv[:], msg)
	return chain.Signature(sig), nil
}

// Verify returns whether s is a valid signature of msg by p. We use the
// ZIP-215 validity criteria so verification agrees with signatures
// produced by almost all ed25519 implementations.
func Verify(msg []byte, p codec.Pubkey, s chain.Signature) bool {
	return ed25519consensus.Verify(p[:], msg, s[:])
}
