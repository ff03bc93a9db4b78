// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinstore tracks the set of unspent outputs and the transaction
// history owned by a single wallet.
//
// A coin moves through exactly one lifecycle: it enters the unspent set when
// a transaction paying the wallet confirms (or when a transaction the wallet
// authored confirms with change), moves to the pending-spent set when the
// wallet submits a transaction consuming it, and is either dropped for good
// once that transaction confirms or returned to the unspent set if the
// transaction expires unconfirmed and the network still reports the coin as
// spendable.
//
// The store is an in-memory structure guarded by a read-write mutex; readers
// always observe a consistent snapshot.  Durability is the caller's job: the
// store serializes to a Snapshot which the wallet writes out with
// atomic-replace semantics after every mutation.
package coinstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/covsuite/covwallet/wire"
)

// CoinRecord describes one unspent output owned by the wallet, together
// with the height at which it confirmed and whether it is change the wallet
// paid back to itself.
type CoinRecord struct {
	Data     wire.CoinData `json:"coin_data"`
	Height   uint64        `json:"height"`
	IsChange bool          `json:"is_change"`
}

// PendingSpend is a coin consumed by a submitted-but-unconfirmed
// transaction.  The full coin record is retained so the coin can be restored
// if the spender is evicted.
type PendingSpend struct {
	Coin    CoinRecord `json:"coin"`
	Spender wire.Hash  `json:"spender"`
}

// TxRecord tracks one transaction relevant to the wallet.  Records are
// append-only history: they are never deleted once their transaction
// confirms.  Raw is nil for transactions the wallet only observed as a
// recipient without seeing the full body.
type TxRecord struct {
	Raw             *wire.MsgTx `json:"raw,omitempty"`
	ConfirmedHeight *uint64     `json:"confirmed_height"`

	// Expiry is the block height after which an unconfirmed transaction
	// is considered abandoned and its inputs become eligible for
	// restoration.  Zero once confirmed.
	Expiry uint64 `json:"expiry,omitempty"`
}

// Credit is a spendable coin as presented to coin selection.
type Credit struct {
	ID   wire.CoinID
	Data wire.CoinData
}

// HistoryEntry is one line of a wallet's transaction history.
type HistoryEntry struct {
	TxHash          wire.Hash `json:"tx_hash"`
	ConfirmedHeight *uint64   `json:"confirmed_height"`
}

// Store tracks the coins and transactions of one wallet.
type Store struct {
	mtx sync.RWMutex

	covhash wire.Hash
	network wire.NetID

	unspent      map[wire.CoinID]*CoinRecord
	pendingSpent map[wire.CoinID]*PendingSpend
	txs          map[wire.Hash]*TxRecord

	// leases reserves unspent coins selected by in-flight transaction
	// preparation so concurrent preparations cannot pick the same coin.
	// Leases are in-memory only and expire on their own.
	leases map[wire.CoinID]time.Time

	lastHeight uint64
	dirty      bool
}

// New creates an empty store for a wallet with the given covenant hash on
// the given network.
func New(covhash wire.Hash, network wire.NetID) *Store {
	return &Store{
		covhash:      covhash,
		network:      network,
		unspent:      make(map[wire.CoinID]*CoinRecord),
		pendingSpent: make(map[wire.CoinID]*PendingSpend),
		txs:          make(map[wire.Hash]*TxRecord),
		leases:       make(map[wire.CoinID]time.Time),
	}
}

// Covhash returns the covenant hash whose coins this store tracks.
func (s *Store) Covhash() wire.Hash {
	return s.covhash
}

// Network returns the network tag of this store.
func (s *Store) Network() wire.NetID {
	return s.network
}

// Balance sums the unspent coin values per denomination.
func (s *Store) Balance() map[wire.Denom]wire.Amount {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	balance := make(map[wire.Denom]wire.Amount)
	for _, rec := range s.unspent {
		balance[rec.Data.Denom] += rec.Data.Value
	}
	return balance
}

// Spendable returns the unspent coins currently available to coin
// selection, excluding coins under an unexpired lease.  The result is sorted
// by descending value (ties broken by coin id) so selection is
// deterministic.
func (s *Store) Spendable(now time.Time) []Credit {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	credits := make([]Credit, 0, len(s.unspent))
	for id, rec := range s.unspent {
		if until, ok := s.leases[id]; ok && now.Before(until) {
			continue
		}
		credits = append(credits, Credit{ID: id, Data: rec.Data})
	}
	sort.Slice(credits, func(i, j int) bool {
		if credits[i].Data.Value != credits[j].Data.Value {
			return credits[i].Data.Value > credits[j].Data.Value
		}
		return credits[i].ID.String() < credits[j].ID.String()
	})
	return credits
}

// LeaseOutputs reserves the given unspent coins until the given time,
// hiding them from Spendable.  Leasing an unknown coin is a no-op rather
// than an error; the coin may have been spent between selection and lease.
func (s *Store) LeaseOutputs(ids []wire.CoinID, until time.Time) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		if _, ok := s.unspent[id]; ok {
			s.leases[id] = until
		}
	}
}

// ReleaseOutputs drops any leases held on the given coins.
func (s *Store) ReleaseOutputs(ids []wire.CoinID) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		delete(s.leases, id)
	}
}

// GetCoin returns the unspent coin record for the given id.
func (s *Store) GetCoin(id wire.CoinID) (CoinRecord, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	rec, ok := s.unspent[id]
	if !ok {
		return CoinRecord{}, false
	}
	return *rec, true
}

// ApplySubmit transitions the store for a transaction the wallet is about
// to broadcast: every input moves from the unspent set to the pending-spent
// set and a transaction record with the given expiry height is appended.
// The whole transition is validated before any part of it is applied, so a
// failure leaves the store untouched.
func (s *Store) ApplySubmit(tx *wire.MsgTx, expiry uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	txHash := tx.TxHash()
	if rec, ok := s.txs[txHash]; ok && rec.ConfirmedHeight != nil {
		return storeError(ErrDuplicateTx, fmt.Sprintf(
			"transaction %v is already confirmed", txHash))
	}

	// Validate all inputs up front.
	for _, in := range tx.Inputs {
		if ps, ok := s.pendingSpent[in]; ok {
			return storeError(ErrCoinPendingSpent, fmt.Sprintf(
				"coin %v is already spent by pending transaction %v",
				in, ps.Spender))
		}
		if _, ok := s.unspent[in]; !ok {
			return storeError(ErrUnknownCoin, fmt.Sprintf(
				"coin %v is not in the wallet's unspent set", in))
		}
	}

	for _, in := range tx.Inputs {
		rec := s.unspent[in]
		delete(s.unspent, in)
		delete(s.leases, in)
		s.pendingSpent[in] = &PendingSpend{Coin: *rec, Spender: txHash}
	}
	s.txs[txHash] = &TxRecord{Raw: tx.Copy(), Expiry: expiry}
	s.dirty = true
	return nil
}

// RollbackSubmit undoes ApplySubmit for a transaction whose broadcast
// failed: its inputs return to the unspent set and its record is removed as
// if the submission never happened.
func (s *Store) RollbackSubmit(txHash wire.Hash) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.txs[txHash]
	if !ok {
		return storeError(ErrUnknownTx, fmt.Sprintf(
			"transaction %v is not tracked", txHash))
	}
	if rec.ConfirmedHeight != nil {
		return storeError(ErrConfirmedTx, fmt.Sprintf(
			"cannot roll back confirmed transaction %v", txHash))
	}

	for id, ps := range s.pendingSpent {
		if ps.Spender == txHash {
			coin := ps.Coin
			delete(s.pendingSpent, id)
			s.unspent[id] = &coin
		}
	}
	delete(s.txs, txHash)
	s.dirty = true
	return nil
}

// ConfirmTx marks a tracked transaction as included at the given height.
// Inputs it consumed leave the pending-spent set permanently and outputs
// paying the wallet's own covenant hash join the unspent set.  Confirming an
// already confirmed transaction is a no-op.
func (s *Store) ConfirmTx(txHash wire.Hash, height uint64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.txs[txHash]
	if !ok {
		return storeError(ErrUnknownTx, fmt.Sprintf(
			"transaction %v is not tracked", txHash))
	}
	if rec.ConfirmedHeight != nil {
		return nil
	}

	h := height
	rec.ConfirmedHeight = &h
	rec.Expiry = 0

	for id, ps := range s.pendingSpent {
		if ps.Spender == txHash {
			delete(s.pendingSpent, id)
		}
	}

	if rec.Raw != nil {
		for i, out := range rec.Raw.Outputs {
			if out.Covhash != s.covhash {
				continue
			}
			id := rec.Raw.OutputCoinID(uint8(i))
			if _, ok := s.unspent[id]; ok {
				continue
			}
			if _, ok := s.pendingSpent[id]; ok {
				continue
			}
			s.unspent[id] = &CoinRecord{
				Data:     out,
				Height:   height,
				IsChange: true,
			}
		}
	}
	s.dirty = true
	return nil
}

// AddExternalCoin credits a coin discovered on the network that was not
// created by a transaction this wallet authored.  Known coins are skipped so
// repeated discovery is idempotent.  A bare history record is created for
// the originating transaction when none exists.
func (s *Store) AddExternalCoin(id wire.CoinID, data wire.CoinData, height uint64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.unspent[id]; ok {
		return
	}
	if _, ok := s.pendingSpent[id]; ok {
		return
	}
	if data.Covhash != s.covhash {
		return
	}

	s.unspent[id] = &CoinRecord{Data: data, Height: height, IsChange: false}
	if _, ok := s.txs[id.TxHash]; !ok {
		h := height
		s.txs[id.TxHash] = &TxRecord{ConfirmedHeight: &h}
	}
	s.dirty = true
}

// ExpiredTx describes an unconfirmed transaction whose expiry height has
// passed, along with the inputs it holds in the pending-spent set.
type ExpiredTx struct {
	TxHash wire.Hash
	Inputs []wire.CoinID
}

// ExpiredPending returns the submitted transactions that are still
// unconfirmed past their expiry height at the given chain height.
func (s *Store) ExpiredPending(height uint64) []ExpiredTx {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var expired []ExpiredTx
	for txHash, rec := range s.txs {
		if rec.ConfirmedHeight != nil || rec.Expiry == 0 || rec.Expiry >= height {
			continue
		}
		var inputs []wire.CoinID
		for id, ps := range s.pendingSpent {
			if ps.Spender == txHash {
				inputs = append(inputs, id)
			}
		}
		expired = append(expired, ExpiredTx{TxHash: txHash, Inputs: inputs})
	}
	return expired
}

// EvictTx gives up on an expired unconfirmed transaction.  Inputs listed in
// restorable return to the unspent set; the rest are dropped, since the
// network no longer reports them as spendable.  The transaction record
// itself is retained in history as permanently unconfirmed.
func (s *Store) EvictTx(txHash wire.Hash, restorable map[wire.CoinID]bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rec, ok := s.txs[txHash]
	if !ok {
		return storeError(ErrUnknownTx, fmt.Sprintf(
			"transaction %v is not tracked", txHash))
	}
	if rec.ConfirmedHeight != nil {
		return storeError(ErrConfirmedTx, fmt.Sprintf(
			"cannot evict confirmed transaction %v", txHash))
	}

	for id, ps := range s.pendingSpent {
		if ps.Spender != txHash {
			continue
		}
		coin := ps.Coin
		delete(s.pendingSpent, id)
		if restorable[id] {
			s.unspent[id] = &coin
		} else {
			log.Debugf("Dropping coin %v: spent elsewhere while "+
				"pending in %v", id, txHash)
		}
	}
	rec.Expiry = 0
	s.dirty = true
	return nil
}

// IsPending returns whether the given transaction is tracked, submitted,
// and not yet confirmed or abandoned.
func (s *Store) IsPending(txHash wire.Hash) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	rec, ok := s.txs[txHash]
	return ok && rec.ConfirmedHeight == nil && rec.Expiry != 0
}

// UnconfirmedTxs returns the hashes of tracked transactions awaiting
// confirmation.
func (s *Store) UnconfirmedTxs() []wire.Hash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var hashes []wire.Hash
	for txHash, rec := range s.txs {
		if rec.ConfirmedHeight == nil && rec.Expiry != 0 {
			hashes = append(hashes, txHash)
		}
	}
	return hashes
}

// TxDetails returns a copy of the tracked transaction record.
func (s *Store) TxDetails(txHash wire.Hash) (TxRecord, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	rec, ok := s.txs[txHash]
	if !ok {
		return TxRecord{}, false
	}
	cp := TxRecord{Expiry: rec.Expiry}
	if rec.Raw != nil {
		cp.Raw = rec.Raw.Copy()
	}
	if rec.ConfirmedHeight != nil {
		h := *rec.ConfirmedHeight
		cp.ConfirmedHeight = &h
	}
	return cp, true
}

// History returns the append-only transaction history, confirmed entries
// first in height order, unconfirmed entries last.
func (s *Store) History() []HistoryEntry {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	entries := make([]HistoryEntry, 0, len(s.txs))
	for txHash, rec := range s.txs {
		entry := HistoryEntry{TxHash: txHash}
		if rec.ConfirmedHeight != nil {
			h := *rec.ConfirmedHeight
			entry.ConfirmedHeight = &h
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		hi, hj := entries[i].ConfirmedHeight, entries[j].ConfirmedHeight
		switch {
		case hi == nil && hj == nil:
			return entries[i].TxHash.String() < entries[j].TxHash.String()
		case hi == nil:
			return false
		case hj == nil:
			return true
		case *hi != *hj:
			return *hi < *hj
		default:
			return entries[i].TxHash.String() < entries[j].TxHash.String()
		}
	})
	return entries
}

// SetLastHeight records the most recent confirmed chain height observed by
// synchronization.
func (s *Store) SetLastHeight(height uint64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if height != s.lastHeight {
		s.lastHeight = height
		s.dirty = true
	}
}

// LastHeight returns the most recent confirmed chain height observed.
func (s *Store) LastHeight() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.lastHeight
}

// Dirty reports whether the store has unpersisted mutations.
func (s *Store) Dirty() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.dirty
}

// CheckConsistency verifies the store's structural invariants: no coin
// appears in both the unspent and pending-spent sets, and every
// pending-spent coin references a tracked unconfirmed spender.
func (s *Store) CheckConsistency() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for id := range s.unspent {
		if _, ok := s.pendingSpent[id]; ok {
			return fmt.Errorf("coin %v is both unspent and pending-spent", id)
		}
	}
	for id, ps := range s.pendingSpent {
		rec, ok := s.txs[ps.Spender]
		if !ok {
			return fmt.Errorf("pending-spent coin %v references "+
				"untracked transaction %v", id, ps.Spender)
		}
		if rec.ConfirmedHeight != nil {
			return fmt.Errorf("pending-spent coin %v references "+
				"confirmed transaction %v", id, ps.Spender)
		}
	}
	return nil
}
