// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/coinstore"
	"github.com/covsuite/covwallet/covscript"
	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/vault"
	"github.com/covsuite/covwallet/wire"
)

// validName restricts wallet names to a filesystem- and URL-safe alphabet.
var validName = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// ManagerConfig bundles a Manager's dependencies and policy.
type ManagerConfig struct {
	// DataDir is the directory holding one record file per wallet.
	DataDir string

	// Network is the chain all managed wallets live on.  Records for
	// other networks are left on disk untouched and not loaded.
	Network wire.NetID

	// Policy tunes fee, expiry, and coin-lease behavior for all wallets.
	Policy Policy
}

// Manager owns the name-to-wallet table of the daemon.  It loads every
// persisted wallet at startup and serializes creation and deletion; all
// per-wallet operations go through the Wallet handles it returns.
type Manager struct {
	cfg     ManagerConfig
	storage *Storage

	mu      sync.RWMutex
	wallets map[string]*Wallet
}

// OpenManager loads all persisted wallets for the configured network from
// the data directory.  A corrupt record is skipped with an error logged so
// one damaged wallet cannot take down the rest.
func OpenManager(cfg ManagerConfig) (*Manager, error) {
	cfg.Policy.normalize()
	storage, err := NewStorage(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:     cfg,
		storage: storage,
		wallets: make(map[string]*Wallet),
	}

	names, err := storage.List()
	if err != nil {
		return nil, err
	}

	// Records are independent files, so they load concurrently.  A
	// damaged record is skipped with an error logged rather than taking
	// the other wallets down with it.
	var g errgroup.Group
	g.SetLimit(8)
	for _, name := range names {
		name := name
		g.Go(func() error {
			rec, err := storage.Read(name)
			if err != nil {
				log.Errorf("Skipping unreadable wallet record %s: %v",
					name, err)
				return nil
			}
			if rec.Network != cfg.Network {
				log.Warnf("Skipping wallet %s: belongs to network %v",
					name, rec.Network)
				return nil
			}
			w, err := newWallet(rec, storage, cfg.Policy)
			if err != nil {
				log.Errorf("Skipping wallet %s: %v", name, err)
				return nil
			}
			m.mu.Lock()
			m.wallets[name] = w
			m.mu.Unlock()
			return nil
		})
	}
	g.Wait()
	log.Infof("Loaded %d wallets from %s", len(m.wallets), cfg.DataDir)
	return m, nil
}

// Create makes a new wallet and durably persists it before returning.  An
// empty passphrase stores the key in cleartext mode; a non-nil importSeed
// imports an existing key instead of generating a fresh one.
func (m *Manager) Create(name string, passphrase, importSeed []byte) (*Wallet, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.wallets[name]; ok {
		return nil, ErrAlreadyExists
	}
	if m.storage.Exists(name) {
		return nil, ErrAlreadyExists
	}

	var priv ed25519.PrivateKey
	if importSeed != nil {
		if len(importSeed) != ed25519.SeedSize {
			return nil, ErrBadSeed
		}
		priv = ed25519.NewKeyFromSeed(importSeed)
	} else {
		var err error
		_, priv, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("cannot generate wallet key: %w", err)
		}
	}
	defer zero.PrivKey(priv)

	stored, err := vault.NewPersistentKey(priv, passphrase)
	if err != nil {
		return nil, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	covhash := covscript.Hash(covscript.Standard(pub))

	rec := &walletRecord{
		Name:    name,
		Network: m.cfg.Network,
		PubKey:  wire.HexBytes(pub),
		Key:     stored,
		Coins:   coinstore.New(covhash, m.cfg.Network).Snapshot(),
	}
	if err := m.storage.Write(rec); err != nil {
		return nil, err
	}
	w, err := newWallet(rec, m.storage, m.cfg.Policy)
	if err != nil {
		return nil, err
	}
	m.wallets[name] = w
	log.Infof("Created wallet %s (address %s)", name, w.Address())
	return w, nil
}

// Get returns the named wallet or ErrNotFound.
func (m *Manager) Get(name string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wallets[name]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

// Names returns the loaded wallet names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.wallets))
	for name := range m.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns a summary for every loaded wallet.
func (m *Manager) List() map[string]Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make(map[string]Summary, len(m.wallets))
	for name, w := range m.wallets {
		summaries[name] = w.Summary()
	}
	return summaries
}

// Delete removes a wallet and its durable record.  It first takes the
// wallet out of the table so no new operation can reach it, then waits for
// any in-flight mutating operation before deleting the record.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	w, ok := m.wallets[name]
	delete(m.wallets, name)
	m.mu.Unlock()

	if !ok {
		// A record for another network may still sit on disk; leave it
		// alone and report the wallet as unknown.
		return ErrNotFound
	}

	w.mu.Lock()
	w.closed = true
	w.vault.Lock()
	w.mu.Unlock()

	if err := m.storage.Delete(name); err != nil {
		return err
	}
	log.Infof("Deleted wallet %s", name)
	return nil
}

// SyncTargets returns the loaded wallets as chain synchronization targets.
func (m *Manager) SyncTargets() []chain.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make([]chain.Target, 0, len(m.wallets))
	for _, w := range m.wallets {
		targets = append(targets, w)
	}
	return targets
}

// Close locks every wallet's vault, zeroing all decrypted key material.
// Called on daemon shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.wallets {
		w.vault.Lock()
	}
	log.Info("Wallet manager closed, all vaults locked")
}
