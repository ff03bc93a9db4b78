// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinstore

import (
	"fmt"

	"github.com/covsuite/covwallet/wire"
)

// Snapshot is the JSON-serializable form of a Store.  Maps are keyed by the
// string form of coin and transaction identifiers.  Leases are deliberately
// absent: they are transient reservations that do not survive a restart.
type Snapshot struct {
	Covhash      wire.Hash                `json:"covhash"`
	Network      wire.NetID               `json:"network"`
	LastHeight   uint64                   `json:"last_height"`
	Unspent      map[string]*CoinRecord   `json:"unspent"`
	PendingSpent map[string]*PendingSpend `json:"pending_spent"`
	Txs          map[string]*TxRecord     `json:"transactions"`
}

// Snapshot captures the store's persistent state and marks the store clean.
// The caller is expected to durably write the snapshot before performing
// further mutations.
func (s *Store) Snapshot() *Snapshot {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	snap := &Snapshot{
		Covhash:      s.covhash,
		Network:      s.network,
		LastHeight:   s.lastHeight,
		Unspent:      make(map[string]*CoinRecord, len(s.unspent)),
		PendingSpent: make(map[string]*PendingSpend, len(s.pendingSpent)),
		Txs:          make(map[string]*TxRecord, len(s.txs)),
	}
	for id, rec := range s.unspent {
		cp := *rec
		snap.Unspent[id.String()] = &cp
	}
	for id, ps := range s.pendingSpent {
		cp := *ps
		snap.PendingSpent[id.String()] = &cp
	}
	for txHash, rec := range s.txs {
		cp := TxRecord{Expiry: rec.Expiry}
		if rec.Raw != nil {
			cp.Raw = rec.Raw.Copy()
		}
		if rec.ConfirmedHeight != nil {
			h := *rec.ConfirmedHeight
			cp.ConfirmedHeight = &h
		}
		snap.Txs[txHash.String()] = &cp
	}
	s.dirty = false
	return snap
}

// FromSnapshot reconstructs a store from its serialized form.
func FromSnapshot(snap *Snapshot) (*Store, error) {
	s := New(snap.Covhash, snap.Network)
	s.lastHeight = snap.LastHeight

	for idStr, rec := range snap.Unspent {
		id, err := wire.ParseCoinID(idStr)
		if err != nil {
			return nil, fmt.Errorf("bad unspent coin id: %w", err)
		}
		cp := *rec
		s.unspent[id] = &cp
	}
	for idStr, ps := range snap.PendingSpent {
		id, err := wire.ParseCoinID(idStr)
		if err != nil {
			return nil, fmt.Errorf("bad pending-spent coin id: %w", err)
		}
		cp := *ps
		s.pendingSpent[id] = &cp
	}
	for hashStr, rec := range snap.Txs {
		txHash, err := wire.NewHashFromStr(hashStr)
		if err != nil {
			return nil, fmt.Errorf("bad transaction hash: %w", err)
		}
		cp := TxRecord{Expiry: rec.Expiry}
		if rec.Raw != nil {
			cp.Raw = rec.Raw.Copy()
		}
		if rec.ConfirmedHeight != nil {
			h := *rec.ConfirmedHeight
			cp.ConfirmedHeight = &h
		}
		s.txs[txHash] = &cp
	}

	if err := s.CheckConsistency(); err != nil {
		return nil, fmt.Errorf("inconsistent snapshot: %w", err)
	}
	return s, nil
}
