// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/wire"
)

// SyncName identifies the wallet as a chain synchronization target.
func (w *Wallet) SyncName() string {
	return w.name
}

// SyncTick reconciles the wallet against confirmed network state.  All
// network queries run before the wallet mutex is taken, so a slow backend
// never blocks user operations; the store transitions applied afterwards
// are all idempotent, which makes the read-then-apply race with concurrent
// submissions harmless.
func (w *Wallet) SyncTick(ctx context.Context, client chain.Interface) error {
	height, err := client.CurrentHeight(ctx)
	if err != nil {
		return &chain.NetworkError{Op: "current_height", Err: err}
	}

	coins, err := client.CoinsAt(ctx, w.covhash)
	if err != nil {
		return &chain.NetworkError{Op: "coins_at", Err: err}
	}

	confirmed := make(map[wire.Hash]uint64)
	for _, txHash := range w.store.UnconfirmedTxs() {
		h, err := client.TxStatus(ctx, txHash)
		if err != nil {
			return &chain.NetworkError{Op: "tx_status", Err: err}
		}
		if h != nil {
			confirmed[txHash] = *h
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}

	w.store.SetLastHeight(height)

	for txHash, h := range confirmed {
		if err := w.store.ConfirmTx(txHash, h); err != nil {
			log.Warnf("Wallet %s: cannot confirm %v: %v", w.name, txHash, err)
			continue
		}
		log.Infof("Wallet %s: transaction %v confirmed at height %d",
			w.name, txHash, h)
	}

	for _, coin := range coins {
		w.store.AddExternalCoin(coin.ID, coin.Data, coin.Height)
	}

	// Give up on submissions unconfirmed past their expiry height.  An
	// input only returns to the unspent set if the network still reports
	// it spendable; inputs consumed by a conflicting spend are dropped.
	onChain := make(map[wire.CoinID]bool, len(coins))
	for _, coin := range coins {
		onChain[coin.ID] = true
	}
	for _, expired := range w.store.ExpiredPending(height) {
		restorable := make(map[wire.CoinID]bool, len(expired.Inputs))
		for _, id := range expired.Inputs {
			if onChain[id] {
				restorable[id] = true
			}
		}
		if err := w.store.EvictTx(expired.TxHash, restorable); err != nil {
			log.Warnf("Wallet %s: cannot evict %v: %v", w.name,
				expired.TxHash, err)
			continue
		}
		log.Infof("Wallet %s: evicted expired transaction %v (%d of %d "+
			"inputs restored)", w.name, expired.TxHash, len(restorable),
			len(expired.Inputs))
	}

	if w.store.Dirty() {
		return w.persistLocked()
	}
	return nil
}
