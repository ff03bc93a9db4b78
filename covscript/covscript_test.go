// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package covscript

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covsuite/covwallet/wire"
)

func TestStandardScriptRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	script := Standard(pub)
	require.Len(t, script, StandardScriptSize)

	extracted, err := ExtractPubKey(script)
	require.NoError(t, err)
	require.Equal(t, pub, extracted)

	// Different keys hash to different covenants.
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, Hash(script), Hash(Standard(pub2)))
}

func TestExtractPubKeyRejectsNonStandard(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	short := Standard(pub)[:StandardScriptSize-1]
	_, err = ExtractPubKey(short)
	require.ErrorIs(t, err, ErrNotStandard)

	wrongVersion := Standard(pub)
	wrongVersion[0] = 0x02
	_, err = ExtractPubKey(wrongVersion)
	require.ErrorIs(t, err, ErrNotStandard)
}

func TestSignAndVerifyInputs(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	script := Standard(pub)

	tx := &wire.MsgTx{
		Kind: wire.TxKindNormal,
		Inputs: []wire.CoinID{
			wire.NewCoinID(wire.HashB([]byte("a")), 0),
			wire.NewCoinID(wire.HashB([]byte("b")), 0),
		},
		Outputs: []wire.CoinData{{
			Covhash: Hash(script),
			Value:   1,
			Denom:   wire.DenomBase,
		}},
	}

	// Signing input 1 first pads the slot for input 0.
	SignInput(tx, 1, priv)
	require.Len(t, tx.Sigs, 2)
	require.ErrorIs(t, VerifyInput(tx, 0, script), ErrMissingSig)
	require.NoError(t, VerifyInput(tx, 1, script))

	SignInput(tx, 0, priv)
	require.NoError(t, VerifyInput(tx, 0, script))

	// A signature from another key does not satisfy the covenant.
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	SignInput(tx, 0, otherPriv)
	require.ErrorIs(t, VerifyInput(tx, 0, script), ErrBadSig)
}
