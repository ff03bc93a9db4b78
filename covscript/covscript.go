// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package covscript builds and satisfies the standard single-signer spend
// covenant.  A coin locked to the hash of a standard covenant is spendable by
// a transaction that carries the covenant script and whose signature slot for
// the spending input verifies against the embedded ed25519 public key.
package covscript

import (
	"crypto/ed25519"
	"errors"

	"github.com/covsuite/covwallet/wire"
)

// StandardVersion is the version byte prefixing a standard ed25519 covenant
// script.
const StandardVersion = 0x01

// StandardScriptSize is the serialized size of a standard covenant script.
const StandardScriptSize = 1 + ed25519.PublicKeySize

var (
	// ErrNotStandard is returned when a covenant script is not a standard
	// ed25519 covenant.
	ErrNotStandard = errors.New("covenant script is not a standard ed25519 covenant")

	// ErrMissingSig is returned when the signature slot for an input is
	// absent or malformed.
	ErrMissingSig = errors.New("input signature slot is missing or malformed")

	// ErrBadSig is returned when an input signature does not verify
	// against the covenant's public key.
	ErrBadSig = errors.New("input signature does not satisfy covenant")
)

// Standard returns the standard covenant script for the given public key.
func Standard(pub ed25519.PublicKey) []byte {
	script := make([]byte, 0, StandardScriptSize)
	script = append(script, StandardVersion)
	script = append(script, pub...)
	return script
}

// Hash returns the covenant hash coins locked to this script carry.
func Hash(script []byte) wire.Hash {
	return wire.HashB(script)
}

// ExtractPubKey returns the ed25519 public key embedded in a standard
// covenant script.
func ExtractPubKey(script []byte) (ed25519.PublicKey, error) {
	if len(script) != StandardScriptSize || script[0] != StandardVersion {
		return nil, ErrNotStandard
	}
	return ed25519.PublicKey(script[1:]), nil
}

// SignInput fills the signature slot for the input at index with a signature
// over the transaction's content hash.  Empty slots for preceding inputs are
// created as needed so that the ith signature always corresponds to the ith
// input.
func SignInput(tx *wire.MsgTx, index int, priv ed25519.PrivateKey) {
	txHash := tx.TxHash()
	for len(tx.Sigs) <= index {
		tx.Sigs = append(tx.Sigs, nil)
	}
	tx.Sigs[index] = ed25519.Sign(priv, txHash[:])
}

// VerifyInput checks that the signature slot for the input at index
// satisfies the given standard covenant script.
func VerifyInput(tx *wire.MsgTx, index int, script []byte) error {
	pub, err := ExtractPubKey(script)
	if err != nil {
		return err
	}
	if index >= len(tx.Sigs) || len(tx.Sigs[index]) != ed25519.SignatureSize {
		return ErrMissingSig
	}
	txHash := tx.TxHash()
	if !ed25519.Verify(pub, txHash[:], tx.Sigs[index]) {
		return ErrBadSig
	}
	return nil
}
