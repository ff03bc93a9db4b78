// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/wire"
)

// mockChain is an in-memory implementation of chain.Interface for tests.
type mockChain struct {
	mtx sync.Mutex

	height       uint64
	coins        map[wire.Hash][]chain.Coin
	confirmed    map[wire.Hash]uint64
	broadcasts   []*wire.MsgTx
	broadcastErr error
}

func newMockChain() *mockChain {
	return &mockChain{
		coins:     make(map[wire.Hash][]chain.Coin),
		confirmed: make(map[wire.Hash]uint64),
	}
}

func (m *mockChain) Broadcast(_ context.Context, tx *wire.MsgTx) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.broadcastErr != nil {
		return m.broadcastErr
	}
	m.broadcasts = append(m.broadcasts, tx.Copy())
	return nil
}

func (m *mockChain) CurrentHeight(context.Context) (uint64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.height, nil
}

func (m *mockChain) CoinsAt(_ context.Context, covhash wire.Hash) ([]chain.Coin, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return append([]chain.Coin(nil), m.coins[covhash]...), nil
}

func (m *mockChain) TxStatus(_ context.Context, txHash wire.Hash) (*uint64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if h, ok := m.confirmed[txHash]; ok {
		return &h, nil
	}
	return nil, nil
}

// setHeight moves the mock chain tip.
func (m *mockChain) setHeight(h uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.height = h
}

// addCoin makes the network report an unspent coin.
func (m *mockChain) addCoin(id wire.CoinID, data wire.CoinData, height uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.coins[data.Covhash] = append(m.coins[data.Covhash], chain.Coin{
		ID:     id,
		Data:   data,
		Height: height,
	})
}

// confirm simulates network inclusion of a transaction at the given height:
// its outputs become unspent coins and its inputs disappear from the
// network's view.
func (m *mockChain) confirm(tx *wire.MsgTx, height uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.confirmed[tx.TxHash()] = height
	spent := make(map[wire.CoinID]bool, len(tx.Inputs))
	for _, in := range tx.Inputs {
		spent[in] = true
	}
	for covhash, coins := range m.coins {
		kept := coins[:0]
		for _, coin := range coins {
			if !spent[coin.ID] {
				kept = append(kept, coin)
			}
		}
		m.coins[covhash] = kept
	}
	for i, out := range tx.Outputs {
		m.coins[out.Covhash] = append(m.coins[out.Covhash], chain.Coin{
			ID:     tx.OutputCoinID(uint8(i)),
			Data:   out,
			Height: height,
		})
	}
	if height > m.height {
		m.height = height
	}
}

// newTestManager opens a manager over a fresh temporary directory.
func newTestManager(t *testing.T, network wire.NetID) *Manager {
	t.Helper()
	m, err := OpenManager(ManagerConfig{
		DataDir: t.TempDir(),
		Network: network,
		Policy: Policy{
			FeePerByte:    1,
			ExpiryDelta:   5,
			LeaseDuration: time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("OpenManager: %v", err)
	}
	return m
}

// fund credits the wallet's store with base-denomination coins directly,
// bypassing the network.
func fund(t *testing.T, w *Wallet, values ...wire.Amount) []wire.CoinID {
	t.Helper()
	ids := make([]wire.CoinID, len(values))
	for i, v := range values {
		tx := &wire.MsgTx{
			Kind: wire.TxKindNormal,
			Outputs: []wire.CoinData{{
				Covhash: w.covhash,
				Value:   v,
				Denom:   wire.DenomBase,
			}},
			Data: []byte{byte(i)},
		}
		ids[i] = tx.OutputCoinID(0)
		w.store.AddExternalCoin(ids[i], tx.Outputs[0], 1)
	}
	return ids
}
