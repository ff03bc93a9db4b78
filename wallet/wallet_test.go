// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/vault"
	"github.com/covsuite/covwallet/wire"
)

func TestNewWalletIsEmptyAndLocked(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", []byte("pw"), nil)
	require.NoError(t, err)

	require.Empty(t, w.Balance())
	require.Empty(t, w.History())
	require.True(t, w.IsLocked())

	summary := w.Summary()
	require.Equal(t, wire.TestNet, summary.Network)
	require.Equal(t, w.Address(), summary.Address)
	require.True(t, summary.Locked)
	require.EqualValues(t, 0, summary.Staked)
}

func TestUnlockWrongPassword(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", []byte("pw"), nil)
	require.NoError(t, err)

	err = w.Unlock([]byte("wrong"))
	require.ErrorIs(t, err, vault.ErrWrongPassphrase)
	require.True(t, w.IsLocked())

	require.NoError(t, w.Unlock([]byte("pw")))
	require.False(t, w.IsLocked())

	// Lock is idempotent.
	w.Lock()
	w.Lock()
	require.True(t, w.IsLocked())
}

func TestFaucetLifecycle(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", []byte("pw"), nil)
	require.NoError(t, err)
	client := newMockChain()

	txHash, err := w.SendFaucet(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, client.broadcasts, 1)

	status, err := w.TxStatus(txHash)
	require.NoError(t, err)
	require.Nil(t, status.ConfirmedHeight)
	require.Empty(t, w.Balance())

	// The network includes the faucet transaction at height 5.
	client.confirm(client.broadcasts[0], 5)
	require.NoError(t, w.SyncTick(context.Background(), client))

	status, err = w.TxStatus(txHash)
	require.NoError(t, err)
	require.NotNil(t, status.ConfirmedHeight)
	require.EqualValues(t, 5, *status.ConfirmedHeight)
	require.Equal(t, 1001*wire.UnitsPerCoin, w.Balance()[wire.DenomBase])
}

func TestFaucetRejectedOnMainNet(t *testing.T) {
	m := newTestManager(t, wire.MainNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)

	_, err = w.SendFaucet(context.Background(), newMockChain())
	require.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestSubmitRollsBackOnBroadcastFailure(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)
	ids := fund(t, w, 2_000_000)
	before := w.Balance()

	client := newMockChain()
	client.broadcastErr = context.DeadlineExceeded

	tx := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: ids,
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   1_900_000,
			Denom:   wire.DenomBase,
		}},
		Fee: 100_000,
	}
	txHash, err := w.Submit(context.Background(), client, tx)
	require.True(t, chain.IsNetworkError(err), "got %v", err)

	// The failed submission left no trace.
	require.Equal(t, before, w.Balance())
	require.False(t, w.store.IsPending(txHash))
	require.NoError(t, w.store.CheckConsistency())
}

func TestSubmitRejectsSpentInputs(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)
	ids := fund(t, w, 2_000_000)
	client := newMockChain()

	tx1 := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: ids,
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   1_900_000,
			Denom:   wire.DenomBase,
		}},
		Fee: 100_000,
	}
	_, err = w.Submit(context.Background(), client, tx1)
	require.NoError(t, err)

	// A second transaction consuming the same coin must be rejected.
	tx2 := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: ids,
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   1_800_000,
			Denom:   wire.DenomBase,
		}},
		Fee: 200_000,
	}
	_, err = w.Submit(context.Background(), client, tx2)
	require.ErrorIs(t, err, ErrInvalidTransaction)
	require.Len(t, client.broadcasts, 1)
}

func TestSubmitRejectsMalformed(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)

	_, err = w.Submit(context.Background(), newMockChain(), &wire.MsgTx{})
	require.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestExportSeedRoundTrip(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", []byte("pw"), nil)
	require.NoError(t, err)

	_, err = w.ExportSeed([]byte("wrong"))
	require.ErrorIs(t, err, vault.ErrWrongPassphrase)

	seed, err := w.ExportSeed([]byte("pw"))
	require.NoError(t, err)
	require.Len(t, seed, 32)
	// Export must not unlock the wallet.
	require.True(t, w.IsLocked())

	// Importing the seed elsewhere reproduces the same address.
	other := newTestManager(t, wire.TestNet)
	clone, err := other.Create("clone", nil, seed)
	require.NoError(t, err)
	require.Equal(t, w.Address(), clone.Address())
}
