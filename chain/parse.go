// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/ephemlabs/dualcounter/codec"
)

// ParseTransaction reconstructs a signed transaction from its wire form.
// Account access flags are recovered from each key's position relative to
// the message header.
func ParseTransaction(b []byte) (*Transaction, error) {
	numSigs, n, err := codec.ConsumeCompactU16(b)
	if err != nil {
		return nil, err
	}
	b = b[n:]
	sigs := make([]Signature, numSigs)
	for i := range sigs {
		if len(b) < SignatureLen {
			return nil, fmt.Errorf("%w: truncated signatures", ErrMalformedTx)
		}
		copy(sigs[i][:], b[:SignatureLen])
		b = b[SignatureLen:]
	}

	if len(b) < 3 {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedTx)
	}
	numSigners := int(b[0])
	numReadonlySigned := int(b[1])
	numReadonlyUnsigned := int(b[2])
	b = b[3:]

	numKeys, n, err := codec.ConsumeCompactU16(b)
	if err != nil {
		return nil, err
	}
	b = b[n:]
	if numSigners > int(numKeys) {
		return nil, fmt.Errorf("%w: header exceeds key count", ErrMalformedTx)
	}
	keys := make([]codec.Pubkey, numKeys)
	for i := range keys {
		if len(b) < codec.PubkeyLen {
			return nil, fmt.Errorf("%w: truncated account keys", ErrMalformedTx)
		}
		copy(keys[i][:], b[:codec.PubkeyLen])
		b = b[codec.PubkeyLen:]
	}
	isSigner := func(i int) bool { return i < numSigners }
	isWritable := func(i int) bool {
		if i < numSigners {
			return i < numSigners-numReadonlySigned
		}
		return i < int(numKeys)-numReadonlyUnsigned
	}

	if len(b) < BlockhashLen {
		return nil, fmt.Errorf("%w: truncated blockhash", ErrMalformedTx)
	}
	var blockhash Blockhash
	copy(blockhash[:], b[:BlockhashLen])
	b = b[BlockhashLen:]

	numIxs, n, err := codec.ConsumeCompactU16(b)
	if err != nil {
		return nil, err
	}
	b = b[n:]
	ixs := make([]Instruction, numIxs)
	for i := range ixs {
		if len(b) < 1 {
			return nil, fmt.Errorf("%w: truncated instruction", ErrMalformedTx)
		}
		programIdx := int(b[0])
		b = b[1:]
		if programIdx >= int(numKeys) {
			return nil, fmt.Errorf("%w: program index out of range", ErrMalformedTx)
		}

		numAccounts, n, err := codec.ConsumeCompactU16(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		metas := make([]AccountMeta, numAccounts)
		for j := range metas {
			if len(b) < 1 {
				return nil, fmt.Errorf("%w: truncated account indices", ErrMalformedTx)
			}
			idx := int(b[0])
			b = b[1:]
			if idx >= int(numKeys) {
				return nil, fmt.Errorf("%w: account index out of range", ErrMalformedTx)
			}
			metas[j] = AccountMeta{
				Pubkey:     keys[idx],
				IsSigner:   isSigner(idx),
				IsWritable: isWritable(idx),
			}
		}

		dataLen, n, err := codec.ConsumeCompactU16(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		if len(b) < int(dataLen) {
			return nil, fmt.Errorf("%w: truncated instruction data", ErrMalformedTx)
		}
		ixs[i] = Instruction{
			Program: keys[programIdx],
			Keys:    metas,
			Data:    append([]byte{}, b[:dataLen]...),
		}
		b = b[dataLen:]
	}

	if numKeys == 0 {
		return nil, fmt.Errorf("%w: no account keys", ErrMalformedTx)
	}
	return &Transaction{
		FeePayer:     keys[0],
		Blockhash:    blockhash,
		Instructions: ixs,
		signatures:   sigs,
	}, nil
}
