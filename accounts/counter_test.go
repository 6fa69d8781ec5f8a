// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"crypto/rand"
	"testing"

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

func TestCounterRoundTrip(t *testing.T) {
	require := require.New(t)

	c := &Counter{Count: 41, Authority: randomPubkey(t)}
	raw, err := EncodeCounter(c)
	require.NoError(err)
	require.Len(raw, DiscriminatorLen+8+len(c.Authority))

	got, err := DecodeCounter(raw)
	require.NoError(err)
	require.Equal(c, got)
}

func TestDecodeCounterTooShort(t *testing.T) {
	require := require.New(t)

	_, err := DecodeCounter(nil)
	require.ErrorIs(err, ErrAccountTooShort)

	_, err = DecodeCounter(CounterDiscriminator[:4])
	require.ErrorIs(err, ErrAccountTooShort)
}

func TestDecodeCounterBadDiscriminator(t *testing.T) {
	require := require.New(t)

	raw, err := EncodeCounter(&Counter{Count: 1})
	require.NoError(err)
	raw[0] ^= 0xff
	_, err = DecodeCounter(raw)
	require.ErrorIs(err, ErrBadDiscriminator)
}

func TestDecodeCounterTruncatedBody(t *testing.T) {
	require := require.New(t)

	raw, err := EncodeCounter(&Counter{Count: 7, Authority: randomPubkey(t)})
	require.NoError(err)
	_, err = DecodeCounter(raw[:DiscriminatorLen+4])
	require.ErrorIs(err, ErrMalformedAccount)
}

func TestCounterAddressDeterministic(t *testing.T) {
	require := require.New(t)

	authority := randomPubkey(t)
	addr, bump, err := CounterAddress(authority)
	require.NoError(err)
	require.NotEqual(codec.EmptyPubkey, addr)

	again, bumpAgain, err := CounterAddress(authority)
	require.NoError(err)
	require.Equal(addr, again)
	require.Equal(bump, bumpAgain)

	other, _, err := CounterAddress(randomPubkey(t))
	require.NoError(err)
	require.NotEqual(addr, other)
}

func TestDiscriminatorStable(t *testing.T) {
	require := require.New(t)

	require.Len(CounterDiscriminator, DiscriminatorLen)
	require.Equal(CounterDiscriminator, Discriminator("account", "Counter"))
	require.NotEqual(CounterDiscriminator, Discriminator("global", "Counter"))
}
