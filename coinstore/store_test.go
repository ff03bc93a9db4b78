// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covsuite/covwallet/wire"
)

var (
	testCovhash  = wire.HashB([]byte("own covenant"))
	otherCovhash = wire.HashB([]byte("someone else"))
)

// fundedStore returns a store credited with coins of the given values in the
// base denomination.
func fundedStore(t *testing.T, values ...wire.Amount) (*Store, []wire.CoinID) {
	t.Helper()
	s := New(testCovhash, wire.TestNet)
	ids := make([]wire.CoinID, len(values))
	for i, v := range values {
		fundingTx := &wire.MsgTx{
			Kind: wire.TxKindNormal,
			Outputs: []wire.CoinData{{
				Covhash: testCovhash,
				Value:   v,
				Denom:   wire.DenomBase,
			}},
			Data: []byte{byte(i)},
		}
		ids[i] = fundingTx.OutputCoinID(0)
		s.AddExternalCoin(ids[i], fundingTx.Outputs[0], 1)
	}
	return s, ids
}

// spendTx builds a transaction consuming the given coins and paying value to
// the other covenant hash.
func spendTx(inputs []wire.CoinID, value wire.Amount) *wire.MsgTx {
	tx := &wire.MsgTx{Kind: wire.TxKindNormal, Inputs: inputs}
	tx.AddOutput(wire.CoinData{
		Covhash: otherCovhash,
		Value:   value,
		Denom:   wire.DenomBase,
	})
	return tx
}

func TestBalanceMatchesUnspent(t *testing.T) {
	s, _ := fundedStore(t, 100, 250, 7)
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 357}, s.Balance())
	require.NoError(t, s.CheckConsistency())
}

func TestAddExternalCoinIdempotent(t *testing.T) {
	s, ids := fundedStore(t, 100)
	rec, ok := s.GetCoin(ids[0])
	require.True(t, ok)

	s.AddExternalCoin(ids[0], rec.Data, 5)
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 100}, s.Balance())
	require.False(t, rec.IsChange)
}

func TestAddExternalCoinRejectsForeignCovhash(t *testing.T) {
	s := New(testCovhash, wire.TestNet)
	tx := spendTx(nil, 50)
	s.AddExternalCoin(tx.OutputCoinID(0), tx.Outputs[0], 1)
	require.Empty(t, s.Balance())
}

func TestApplySubmitMovesCoinsToPendingSpent(t *testing.T) {
	s, ids := fundedStore(t, 100, 50)
	tx := spendTx(ids[:1], 90)

	require.NoError(t, s.ApplySubmit(tx, 20))
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 50}, s.Balance())
	require.True(t, s.IsPending(tx.TxHash()))
	require.NoError(t, s.CheckConsistency())

	// The same coin cannot be spent by a second submission.
	tx2 := spendTx(ids[:1], 80)
	err := s.ApplySubmit(tx2, 20)
	require.True(t, IsError(err, ErrCoinPendingSpent))

	// Unknown coins are rejected before any state change.
	ghost := wire.NewCoinID(wire.HashB([]byte("ghost")), 0)
	tx3 := spendTx([]wire.CoinID{ids[1], ghost}, 10)
	err = s.ApplySubmit(tx3, 20)
	require.True(t, IsError(err, ErrUnknownCoin))
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 50}, s.Balance())
	require.NoError(t, s.CheckConsistency())
}

func TestRollbackSubmitRestoresCoins(t *testing.T) {
	s, ids := fundedStore(t, 100)
	tx := spendTx(ids, 90)

	require.NoError(t, s.ApplySubmit(tx, 20))
	require.NoError(t, s.RollbackSubmit(tx.TxHash()))

	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 100}, s.Balance())
	require.False(t, s.IsPending(tx.TxHash()))
	_, tracked := s.TxDetails(tx.TxHash())
	require.False(t, tracked, "rolled back submission must leave no trace")
	require.NoError(t, s.CheckConsistency())
}

func TestConfirmTxCreditsOwnOutputs(t *testing.T) {
	s, ids := fundedStore(t, 100)
	tx := spendTx(ids, 60)
	tx.AddOutput(wire.CoinData{
		Covhash: testCovhash,
		Value:   30,
		Denom:   wire.DenomBase,
	})

	require.NoError(t, s.ApplySubmit(tx, 20))
	require.NoError(t, s.ConfirmTx(tx.TxHash(), 15))

	// The spent coin is gone for good and the change output joined the
	// unspent set.
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 30}, s.Balance())
	change, ok := s.GetCoin(tx.OutputCoinID(1))
	require.True(t, ok)
	require.True(t, change.IsChange)
	require.EqualValues(t, 15, change.Height)

	details, ok := s.TxDetails(tx.TxHash())
	require.True(t, ok)
	require.NotNil(t, details.ConfirmedHeight)
	require.EqualValues(t, 15, *details.ConfirmedHeight)

	// Confirming again changes nothing.
	require.NoError(t, s.ConfirmTx(tx.TxHash(), 16))
	require.EqualValues(t, 15, *mustDetails(t, s, tx.TxHash()).ConfirmedHeight)
	require.NoError(t, s.CheckConsistency())
}

func mustDetails(t *testing.T, s *Store, txHash wire.Hash) TxRecord {
	t.Helper()
	rec, ok := s.TxDetails(txHash)
	require.True(t, ok)
	return rec
}

func TestEvictTxRestoresOnlyStillSpendable(t *testing.T) {
	s, ids := fundedStore(t, 100, 40)
	tx := spendTx(ids, 120)
	require.NoError(t, s.ApplySubmit(tx, 10))

	expired := s.ExpiredPending(11)
	require.Len(t, expired, 1)
	require.Equal(t, tx.TxHash(), expired[0].TxHash)
	require.ElementsMatch(t, ids, expired[0].Inputs)

	// Only the first input is still reported spendable by the network.
	require.NoError(t, s.EvictTx(tx.TxHash(), map[wire.CoinID]bool{ids[0]: true}))
	require.Equal(t, map[wire.Denom]wire.Amount{wire.DenomBase: 100}, s.Balance())
	require.False(t, s.IsPending(tx.TxHash()))
	require.NoError(t, s.CheckConsistency())

	// History still remembers the abandoned transaction.
	_, tracked := s.TxDetails(tx.TxHash())
	require.True(t, tracked)
}

func TestExpiredPendingRespectsExpiry(t *testing.T) {
	s, ids := fundedStore(t, 100)
	tx := spendTx(ids, 90)
	require.NoError(t, s.ApplySubmit(tx, 20))

	require.Empty(t, s.ExpiredPending(20))
	require.Len(t, s.ExpiredPending(21), 1)

	require.NoError(t, s.ConfirmTx(tx.TxHash(), 19))
	require.Empty(t, s.ExpiredPending(21))
}

func TestLeases(t *testing.T) {
	s, ids := fundedStore(t, 100, 50)
	now := time.Now()

	s.LeaseOutputs(ids[:1], now.Add(time.Minute))
	spendable := s.Spendable(now)
	require.Len(t, spendable, 1)
	require.Equal(t, ids[1], spendable[0].ID)

	// Leases expire on their own...
	require.Len(t, s.Spendable(now.Add(2*time.Minute)), 2)

	// ...and can be released early.
	s.LeaseOutputs(ids[:1], now.Add(time.Minute))
	s.ReleaseOutputs(ids[:1])
	require.Len(t, s.Spendable(now), 2)
}

func TestSpendableDeterministicOrder(t *testing.T) {
	s, _ := fundedStore(t, 10, 300, 300, 5)
	credits := s.Spendable(time.Now())
	require.Len(t, credits, 4)
	require.EqualValues(t, 300, credits[0].Data.Value)
	require.EqualValues(t, 300, credits[1].Data.Value)
	require.True(t, credits[0].ID.String() < credits[1].ID.String())
	require.EqualValues(t, 10, credits[2].Data.Value)
	require.EqualValues(t, 5, credits[3].Data.Value)
}

func TestHistoryOrdering(t *testing.T) {
	s, ids := fundedStore(t, 100, 50, 25)

	tx := spendTx(ids[:1], 90)
	require.NoError(t, s.ApplySubmit(tx, 50))

	history := s.History()
	require.Len(t, history, 4)
	// Unconfirmed entries sort last.
	require.Nil(t, history[3].ConfirmedHeight)
	require.Equal(t, tx.TxHash(), history[3].TxHash)
	for _, entry := range history[:3] {
		require.NotNil(t, entry.ConfirmedHeight)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, ids := fundedStore(t, 100, 50)
	tx := spendTx(ids[:1], 90)
	require.NoError(t, s.ApplySubmit(tx, 20))
	s.SetLastHeight(12)

	require.True(t, s.Dirty())
	blob, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	require.False(t, s.Dirty())

	var snap Snapshot
	require.NoError(t, json.Unmarshal(blob, &snap))
	restored, err := FromSnapshot(&snap)
	require.NoError(t, err)

	require.Equal(t, s.Balance(), restored.Balance())
	require.Equal(t, s.History(), restored.History())
	require.True(t, restored.IsPending(tx.TxHash()))
	require.EqualValues(t, 12, restored.LastHeight())
	require.NoError(t, restored.CheckConsistency())
}
