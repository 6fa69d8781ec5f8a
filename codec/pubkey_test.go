// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func generateTestPubkey(t *testing.T) Pubkey {
	t.Helper()
	var p Pubkey
	_, err := rand.Read(p[:])
	require.NoError(t, err)
	return p
}

func TestPubkeyRoundTrip(t *testing.T) {
	require := require.New(t)

	p := generateTestPubkey(t)
	parsed, err := ParsePubkey(p.String())
	require.NoError(err)
	require.Equal(p, parsed)
}

func TestPubkeyText(t *testing.T) {
	require := require.New(t)

	p := generateTestPubkey(t)
	text, err := p.MarshalText()
	require.NoError(err)

	var parsed Pubkey
	require.NoError(parsed.UnmarshalText(text))
	require.Equal(p, parsed)
}

func TestPubkeyJSON(t *testing.T) {
	require := require.New(t)

	p := generateTestPubkey(t)
	raw, err := json.Marshal(p)
	require.NoError(err)

	var parsed Pubkey
	require.NoError(json.Unmarshal(raw, &parsed))
	require.Equal(p, parsed)
}

func TestParsePubkeyRejectsMalformed(t *testing.T) {
	require := require.New(t)

	_, err := ParsePubkey("not-base58-0OIl")
	require.ErrorIs(err, ErrInvalidPubkey)

	// valid base58 but wrong length
	_, err = ParsePubkey("abc")
	require.ErrorIs(err, ErrInvalidPubkey)
}

func TestSystemProgramPubkey(t *testing.T) {
	require := require.New(t)

	p, err := ParsePubkey("11111111111111111111111111111111")
	require.NoError(err)
	require.Equal(EmptyPubkey, p)
}
