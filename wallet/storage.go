// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/covsuite/covwallet/coinstore"
	"github.com/covsuite/covwallet/vault"
	"github.com/covsuite/covwallet/wire"
)

// walletRecord is the durable form of one wallet: its metadata, its
// persisted signing key, and a snapshot of its coin store.  Each wallet owns
// exactly one record file so corruption of one record can never damage
// another wallet.
type walletRecord struct {
	Name    string               `json:"name"`
	Network wire.NetID           `json:"network"`
	PubKey  wire.HexBytes        `json:"pubkey"`
	Key     *vault.PersistentKey `json:"key"`
	Coins   *coinstore.Snapshot  `json:"coins"`
}

// Storage manages the directory of wallet record files, one JSON file per
// wallet keyed by wallet name.
type Storage struct {
	dir string
}

// NewStorage opens (creating if necessary) the wallet record directory.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("cannot create wallet directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the directory storage writes into.
func (st *Storage) Dir() string {
	return st.dir
}

func (st *Storage) path(name string) string {
	return filepath.Join(st.dir, name+".json")
}

// Write durably replaces the record for rec.Name.  The record is first
// written to a temporary file which is synced and then renamed over the
// final path, so a crash at any point leaves either the old record or the
// new one, never a partial write.
func (st *Storage) Write(rec *walletRecord) error {
	blob, err := json.MarshalIndent(rec, "", "\t")
	if err != nil {
		return fmt.Errorf("cannot encode wallet record: %w", err)
	}

	tmp, err := os.CreateTemp(st.dir, rec.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temporary wallet file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write wallet record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot sync wallet record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot close wallet record: %w", err)
	}
	if err := os.Rename(tmpPath, st.path(rec.Name)); err != nil {
		return fmt.Errorf("cannot replace wallet record: %w", err)
	}
	return nil
}

// Read loads the record for the named wallet.  A missing record returns
// ErrNotFound.
func (st *Storage) Read(name string) (*walletRecord, error) {
	blob, err := os.ReadFile(st.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot read wallet record: %w", err)
	}
	rec := new(walletRecord)
	if err := json.Unmarshal(blob, rec); err != nil {
		return nil, fmt.Errorf("corrupt wallet record %s: %w", name, err)
	}
	if rec.Name != name {
		return nil, fmt.Errorf("wallet record %s claims name %q", name, rec.Name)
	}
	return rec, nil
}

// List returns the names of all wallets with a record on disk.
func (st *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list wallet directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

// Exists returns whether a record for the named wallet is on disk.
func (st *Storage) Exists(name string) bool {
	_, err := os.Stat(st.path(name))
	return err == nil
}

// Delete removes the record for the named wallet.
func (st *Storage) Delete(name string) error {
	if err := os.Remove(st.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("cannot delete wallet record: %w", err)
	}
	return nil
}
