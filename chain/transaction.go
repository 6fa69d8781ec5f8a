// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/ephemlabs/dualcounter/codec"
)

const SignatureLen = 64

type Signature [SignatureLen]byte

var EmptySignature = Signature{}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// ParseSignature returns the Signature encoded by the base58 string s.
func ParseSignature(s string) (Signature, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptySignature, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if len(b) != SignatureLen {
		return EmptySignature, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLen, len(b))
	}
	var sig Signature
	copy(sig[:], b)
	return sig, nil
}

// AccountMeta marks how an instruction touches one account.
type AccountMeta struct {
	Pubkey     codec.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation inside a transaction.
type Instruction struct {
	Program codec.Pubkey
	Keys    []AccountMeta
	Data    []byte
}

// Transaction is a short-lived value representing one unsigned operation
// in flight. It is owned by the call that created it until signed and
// submitted, then discarded.
type Transaction struct {
	FeePayer     codec.Pubkey
	Blockhash    Blockhash
	Instructions []Instruction

	signatures []Signature
}

func NewTransaction(feePayer codec.Pubkey, blockhash Blockhash, instructions ...Instruction) *Transaction {
	return &Transaction{
		FeePayer:     feePayer,
		Blockhash:    blockhash,
		Instructions: instructions,
	}
}

// compiledKey tracks the merged access flags for one unique account
// across all instructions.
type compiledKey struct {
	pubkey   codec.Pubkey
	signer   bool
	writable bool
}

// compileKeys returns the unique account list in the on-wire ordering:
// fee payer, then writable signers, readonly signers, writable
// non-signers, readonly non-signers.
func (t *Transaction) compileKeys() ([]compiledKey, error) {
	merged := map[codec.Pubkey]*compiledKey{}
	order := []codec.Pubkey{}
	upsert := func(pk codec.Pubkey, signer bool, writable bool) {
		ck, ok := merged[pk]
		if !ok {
			ck = &compiledKey{pubkey: pk}
			merged[pk] = ck
			order = append(order, pk)
		}
		ck.signer = ck.signer || signer
		ck.writable = ck.writable || writable
	}

	upsert(t.FeePayer, true, true)
	for _, ix := range t.Instructions {
		for _, meta := range ix.Keys {
			upsert(meta.Pubkey, meta.IsSigner, meta.IsWritable)
		}
		upsert(ix.Program, false, false)
	}
	if len(order) > 256 {
		return nil, ErrTooManyKeys
	}

	keys := make([]compiledKey, 0, len(order))
	appendClass := func(signer bool, writable bool) {
		for _, pk := range order {
			ck := merged[pk]
			if pk == t.FeePayer || ck.signer != signer || ck.writable != writable {
				continue
			}
			keys = append(keys, *ck)
		}
	}
	keys = append(keys, *merged[t.FeePayer])
	appendClass(true, true)
	appendClass(true, false)
	appendClass(false, true)
	appendClass(false, false)
	return keys, nil
}

// Message serializes the unsigned message: header, account keys,
// blockhash, then instructions with their key indices.
func (t *Transaction) Message() ([]byte, error) {
	if len(t.Instructions) == 0 {
		return nil, ErrNoInstructions
	}
	keys, err := t.compileKeys()
	if err != nil {
		return nil, err
	}

	var (
		numSigners        uint8
		numReadonlySigned uint8
		numReadonlyUnsign uint8
		indexOf           = map[codec.Pubkey]uint8{}
	)
	for i, k := range keys {
		indexOf[k.pubkey] = uint8(i)
		if k.signer {
			numSigners++
			if !k.writable {
				numReadonlySigned++
			}
		} else if !k.writable {
			numReadonlyUnsign++
		}
	}

	msg := []byte{numSigners, numReadonlySigned, numReadonlyUnsign}
	msg = codec.AppendCompactU16(msg, uint16(len(keys)))
	for _, k := range keys {
		msg = append(msg, k.pubkey[:]...)
	}
	msg = append(msg, t.Blockhash[:]...)
	msg = codec.AppendCompactU16(msg, uint16(len(t.Instructions)))
	for _, ix := range t.Instructions {
		msg = append(msg, indexOf[ix.Program])
		msg = codec.AppendCompactU16(msg, uint16(len(ix.Keys)))
		for _, meta := range ix.Keys {
			msg = append(msg, indexOf[meta.Pubkey])
		}
		msg = codec.AppendCompactU16(msg, uint16(len(ix.Data)))
		msg = append(msg, ix.Data...)
	}
	return msg, nil
}

// signerKeys returns the required signer pubkeys in message order.
func (t *Transaction) signerKeys() ([]codec.Pubkey, error) {
	keys, err := t.compileKeys()
	if err != nil {
		return nil, err
	}
	signers := []codec.Pubkey{}
	for _, k := range keys {
		if k.signer {
			signers = append(signers, k.pubkey)
		}
	}
	return signers, nil
}

// Sign populates t's signature list from [signers]. Every required
// signer must be present; extra signers are ignored.
func (t *Transaction) Sign(signers ...Signer) error {
	msg, err := t.Message()
	if err != nil {
		return err
	}
	required, err := t.signerKeys()
	if err != nil {
		return err
	}

	available := map[codec.Pubkey]Signer{}
	for _, s := range signers {
		available[s.PublicKey()] = s
	}
	sigs := make([]Signature, len(required))
	for i, pk := range required {
		s, ok := available[pk]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, pk)
		}
		sig, err := s.Sign(msg)
		if err != nil {
			return err
		}
		sigs[i] = sig
	}
	t.signatures = sigs
	return nil
}

// Signature returns the transaction's primary (fee payer) signature,
// which doubles as its identifier on the ledger.
func (t *Transaction) Signature() Signature {
	if len(t.signatures) == 0 {
		return EmptySignature
	}
	return t.signatures[0]
}

// Bytes returns the fully signed wire form: a compact array of
// signatures followed by the message.
func (t *Transaction) Bytes() ([]byte, error) {
	if len(t.signatures) == 0 {
		return nil, fmt.Errorf("%w: transaction is unsigned", ErrInvalidSignature)
	}
	msg, err := t.Message()
	if err != nil {
		return nil, err
	}
	out := codec.AppendCompactU16(nil, uint16(len(t.signatures)))
	for _, sig := range t.signatures {
		out = append(out, sig[:]...)
	}
	return append(out, msg...), nil
}
