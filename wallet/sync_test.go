// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covsuite/covwallet/wire"
)

func TestSyncTickDiscoversExternalCoins(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)

	client := newMockChain()
	funding := &wire.MsgTx{
		Kind: wire.TxKindNormal,
		Outputs: []wire.CoinData{{
			Covhash: w.Covhash(),
			Value:   250_000,
			Denom:   wire.DenomBase,
		}},
	}
	client.addCoin(funding.OutputCoinID(0), funding.Outputs[0], 7)
	client.setHeight(9)

	require.NoError(t, w.SyncTick(context.Background(), client))

	require.Equal(t, wire.Amount(250_000), w.Balance()[wire.DenomBase])
	require.EqualValues(t, 9, w.store.LastHeight())
	require.False(t, w.store.Dirty(), "sync must persist its changes")

	coin, ok := w.store.GetCoin(funding.OutputCoinID(0))
	require.True(t, ok)
	require.False(t, coin.IsChange)
	require.EqualValues(t, 7, coin.Height)

	// Repeating the tick changes nothing.
	require.NoError(t, w.SyncTick(context.Background(), client))
	require.Equal(t, wire.Amount(250_000), w.Balance()[wire.DenomBase])
}

func TestSyncTickEvictsExpiredSubmission(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)

	// Fund through the network so the mock keeps reporting the coin as
	// unspent after the submission goes stale.
	client := newMockChain()
	funding := &wire.MsgTx{
		Kind: wire.TxKindNormal,
		Outputs: []wire.CoinData{{
			Covhash: w.Covhash(),
			Value:   2_000_000,
			Denom:   wire.DenomBase,
		}},
	}
	fundingID := funding.OutputCoinID(0)
	client.addCoin(fundingID, funding.Outputs[0], 1)
	client.setHeight(1)
	require.NoError(t, w.SyncTick(context.Background(), client))

	tx := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: []wire.CoinID{fundingID},
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   1_900_000,
			Denom:   wire.DenomBase,
		}},
		Fee: 100_000,
	}
	txHash, err := w.Submit(context.Background(), client, tx)
	require.NoError(t, err)
	require.Empty(t, w.Balance())

	// The transaction never confirms.  Once the chain passes the expiry
	// height (submitted at 1, expiry delta 5), the wallet gives up and
	// restores the input the network still reports as unspent.
	client.setHeight(7)
	require.NoError(t, w.SyncTick(context.Background(), client))

	require.False(t, w.store.IsPending(txHash))
	require.Equal(t, wire.Amount(2_000_000), w.Balance()[wire.DenomBase])
	require.NoError(t, w.store.CheckConsistency())

	// The abandoned transaction stays in history, permanently unconfirmed.
	status, err := w.TxStatus(txHash)
	require.NoError(t, err)
	require.Nil(t, status.ConfirmedHeight)
}

func TestSyncTickDropsConflictedInputs(t *testing.T) {
	m := newTestManager(t, wire.TestNet)
	w, err := m.Create("alice", nil, nil)
	require.NoError(t, err)

	client := newMockChain()
	funding := &wire.MsgTx{
		Kind: wire.TxKindNormal,
		Outputs: []wire.CoinData{{
			Covhash: w.Covhash(),
			Value:   2_000_000,
			Denom:   wire.DenomBase,
		}},
	}
	fundingID := funding.OutputCoinID(0)
	client.addCoin(fundingID, funding.Outputs[0], 1)
	client.setHeight(1)
	require.NoError(t, w.SyncTick(context.Background(), client))

	tx := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: []wire.CoinID{fundingID},
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   1_900_000,
			Denom:   wire.DenomBase,
		}},
		Fee: 100_000,
	}
	txHash, err := w.Submit(context.Background(), client, tx)
	require.NoError(t, err)

	// A conflicting spend consumes the input on the network, so eviction
	// must not restore it.
	conflict := &wire.MsgTx{
		Kind:   wire.TxKindNormal,
		Inputs: []wire.CoinID{fundingID},
		Outputs: []wire.CoinData{{
			Covhash: payeeCovhash,
			Value:   2_000_000,
			Denom:   wire.DenomBase,
		}},
	}
	client.confirm(conflict, 3)
	client.setHeight(8)
	require.NoError(t, w.SyncTick(context.Background(), client))

	require.False(t, w.store.IsPending(txHash))
	require.Empty(t, w.Balance(), "conflicted input must not come back")
	require.NoError(t, w.store.CheckConsistency())
}
