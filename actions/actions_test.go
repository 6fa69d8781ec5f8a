// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package actions

import (
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/consts"
)

func randomPubkey(t *testing.T) codec.Pubkey {
	t.Helper()
	var pk codec.Pubkey
	_, err := rand.Read(pk[:])
	require.NoError(t, err)
	return pk
}

func testAccounts(t *testing.T) chain.Accounts {
	t.Helper()
	return chain.Accounts{
		Counter: randomPubkey(t),
		Signer:  randomPubkey(t),
	}
}

func TestInstructionDiscriminators(t *testing.T) {
	require := require.New(t)

	for _, tt := range []struct {
		action chain.Action
		method string
	}{
		{&Initialize{}, "initialize"},
		{&Increment{}, "increment"},
		{&Decrement{}, "decrement"},
		{&Set{Value: 3}, "set"},
		{&Delegate{}, "delegate"},
		{&Commit{}, "commit"},
		{&Undelegate{}, "undelegate"},
	} {
		require.Equal(tt.method, tt.action.Method())
		data, err := tt.action.Data()
		require.NoError(err)
		require.Equal(
			accounts.Discriminator("global", tt.method),
			data[:accounts.DiscriminatorLen],
			tt.method,
		)
	}
}

func TestSetData(t *testing.T) {
	require := require.New(t)

	data, err := (&Set{Value: 42}).Data()
	require.NoError(err)
	require.Len(data, accounts.DiscriminatorLen+8)
	require.Equal(uint64(42), binary.LittleEndian.Uint64(data[accounts.DiscriminatorLen:]))
}

func TestUpdateKeys(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	keys, err := (&Increment{}).Keys(a)
	require.NoError(err)
	require.Len(keys, 2)
	require.Equal(a.Counter, keys[0].Pubkey)
	require.True(keys[0].IsWritable)
	require.False(keys[0].IsSigner)
	require.Equal(a.Signer, keys[1].Pubkey)
	require.True(keys[1].IsSigner)
}

func TestUpdateKeysSessionToken(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	token := randomPubkey(t)
	a.SessionToken = &token

	keys, err := (&Set{Value: 1}).Keys(a)
	require.NoError(err)
	require.Len(keys, 3)
	require.Equal(token, keys[2].Pubkey)
	require.False(keys[2].IsSigner)
	require.False(keys[2].IsWritable)
}

func TestInitializeKeys(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	keys, err := (&Initialize{}).Keys(a)
	require.NoError(err)
	require.Len(keys, 3)
	require.Equal(a.Counter, keys[0].Pubkey)
	require.Equal(a.Signer, keys[1].Pubkey)
	require.True(keys[1].IsSigner)
	require.Equal(consts.SystemProgram, keys[2].Pubkey)
}

func TestDelegateKeys(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	keys, err := (&Delegate{}).Keys(a)
	require.NoError(err)
	require.Len(keys, 8)

	buffer, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("buffer"), a.Counter[:]}, consts.CounterProgram)
	require.NoError(err)
	record, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("delegation"), a.Counter[:]}, consts.DelegationProgram)
	require.NoError(err)
	metadata, _, err := codec.FindProgramAddress(
		[][]byte{[]byte("delegation-metadata"), a.Counter[:]}, consts.DelegationProgram)
	require.NoError(err)

	require.Equal(a.Signer, keys[0].Pubkey)
	require.True(keys[0].IsSigner)
	require.Equal(a.Counter, keys[1].Pubkey)
	require.Equal(consts.CounterProgram, keys[2].Pubkey)
	require.Equal(buffer, keys[3].Pubkey)
	require.Equal(record, keys[4].Pubkey)
	require.Equal(metadata, keys[5].Pubkey)
	require.Equal(consts.DelegationProgram, keys[6].Pubkey)
	require.Equal(consts.SystemProgram, keys[7].Pubkey)
}

func TestDelegateKeysValidator(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	validator := randomPubkey(t)
	a.Validator = &validator

	keys, err := (&Delegate{}).Keys(a)
	require.NoError(err)
	require.Len(keys, 9)
	require.Equal(validator, keys[8].Pubkey)
	require.False(keys[8].IsSigner)
}

func TestCommitKeys(t *testing.T) {
	require := require.New(t)

	a := testAccounts(t)
	for _, action := range []chain.Action{&Commit{}, &Undelegate{}} {
		keys, err := action.Keys(a)
		require.NoError(err)
		require.Len(keys, 4)
		require.Equal(a.Signer, keys[0].Pubkey)
		require.True(keys[0].IsSigner)
		require.Equal(a.Counter, keys[1].Pubkey)
		require.True(keys[1].IsWritable)
		require.Equal(consts.MagicContext, keys[2].Pubkey)
		require.True(keys[2].IsWritable)
		require.Equal(consts.MagicProgram, keys[3].Pubkey)
		require.False(keys[3].IsWritable)
	}
}
