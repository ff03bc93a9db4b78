// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet composes the key vault, coin store, and transaction
// balancer into addressable wallet units and manages their durable records.
//
// Every wallet serializes its mutating operations (prepare, submit, lock,
// unlock, sync, delete) behind one mutex; read operations go straight to the
// coin store, which guards itself.  Network calls are never made while the
// wallet mutex is held: submission applies its state change, releases the
// mutex, broadcasts with a bounded timeout, and rolls the change back if the
// broadcast fails.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/coinstore"
	"github.com/covsuite/covwallet/covscript"
	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/vault"
	"github.com/covsuite/covwallet/wire"
)

const (
	// defaultFeePerByte is the fee policy applied when the config leaves
	// it unset.
	defaultFeePerByte wire.Amount = 100

	// defaultExpiryDelta is how many blocks past the current height a
	// submitted transaction may linger unconfirmed before its inputs
	// become eligible for restoration.
	defaultExpiryDelta uint64 = 100

	// defaultLeaseDuration is how long transaction preparation reserves
	// the coins it selected, keeping concurrent preparations off them.
	defaultLeaseDuration = 90 * time.Second

	// broadcastTimeout bounds the network call made during submission.
	broadcastTimeout = 30 * time.Second

	// faucetValue is the fixed amount a faucet transaction self-mints on
	// test networks.
	faucetValue = 1001 * wire.UnitsPerCoin
)

// Policy bundles the tunables shared by all wallets of one daemon.  The
// zero value selects defaults.
type Policy struct {
	FeePerByte    wire.Amount
	ExpiryDelta   uint64
	LeaseDuration time.Duration
}

func (p *Policy) normalize() {
	if p.FeePerByte == 0 {
		p.FeePerByte = defaultFeePerByte
	}
	if p.ExpiryDelta == 0 {
		p.ExpiryDelta = defaultExpiryDelta
	}
	if p.LeaseDuration <= 0 {
		p.LeaseDuration = defaultLeaseDuration
	}
}

// Wallet is one custody unit: a signing key behind a vault, the coins that
// key controls, and the machinery to build and submit transactions spending
// them.
type Wallet struct {
	// mu serializes mutating operations.  It is never held across a
	// network call.
	mu sync.Mutex

	name    string
	network wire.NetID
	pub     ed25519.PublicKey
	script  []byte
	covhash wire.Hash

	vault   *vault.Vault
	store   *coinstore.Store
	storage *Storage
	policy  Policy

	// closed is set once the wallet is deleted; any mutating operation
	// that raced the deletion fails instead of resurrecting the record.
	closed bool
}

// newWallet builds the runtime wallet for a durable record.
func newWallet(rec *walletRecord, storage *Storage, policy Policy) (*Wallet, error) {
	if len(rec.PubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("wallet %s: malformed public key", rec.Name)
	}
	if rec.Key == nil || rec.Coins == nil {
		return nil, fmt.Errorf("wallet %s: incomplete record", rec.Name)
	}
	pub := ed25519.PublicKey(rec.PubKey)
	script := covscript.Standard(pub)
	covhash := covscript.Hash(script)

	store, err := coinstore.FromSnapshot(rec.Coins)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", rec.Name, err)
	}
	if store.Covhash() != covhash {
		return nil, fmt.Errorf("wallet %s: coin snapshot covhash does not "+
			"match key", rec.Name)
	}
	if store.Network() != rec.Network {
		return nil, fmt.Errorf("wallet %s: coin snapshot network mismatch",
			rec.Name)
	}

	return &Wallet{
		name:    rec.Name,
		network: rec.Network,
		pub:     pub,
		script:  script,
		covhash: covhash,
		vault:   vault.New(rec.Key),
		store:   store,
		storage: storage,
		policy:  policy,
	}, nil
}

// Name returns the wallet's immutable name.
func (w *Wallet) Name() string {
	return w.name
}

// Network returns the network this wallet's coins live on.
func (w *Wallet) Network() wire.NetID {
	return w.network
}

// Covhash returns the covenant hash the wallet's coins are locked to.
func (w *Wallet) Covhash() wire.Hash {
	return w.covhash
}

// Address returns the wallet's address, the fixed-length hex encoding of
// its covenant hash.
func (w *Wallet) Address() string {
	return w.covhash.String()
}

// IsLocked returns whether the wallet's signing key is currently locked.
func (w *Wallet) IsLocked() bool {
	return w.vault.IsLocked()
}

// Balance returns the wallet's spendable balance per denomination.
func (w *Wallet) Balance() map[wire.Denom]wire.Amount {
	return w.store.Balance()
}

// History returns the wallet's append-only transaction history.
func (w *Wallet) History() []coinstore.HistoryEntry {
	return w.store.History()
}

// Summary returns the wallet's list-view line.
func (w *Wallet) Summary() Summary {
	return Summary{
		Balance: w.store.Balance(),
		Staked:  0,
		Network: w.network,
		Address: w.Address(),
		Locked:  w.vault.IsLocked(),
	}
}

// TxStatus reports the wallet's view of a tracked transaction, annotating
// each output with its coin id and change attribution.  It returns
// ErrNotFound for untracked transactions.
func (w *Wallet) TxStatus(txHash wire.Hash) (*TransactionStatus, error) {
	rec, ok := w.store.TxDetails(txHash)
	if !ok {
		return nil, ErrNotFound
	}
	status := &TransactionStatus{
		Raw:             rec.Raw,
		ConfirmedHeight: rec.ConfirmedHeight,
	}
	if rec.Raw != nil {
		for i, out := range rec.Raw.Outputs {
			id := rec.Raw.OutputCoinID(uint8(i))
			isChange := false
			if coin, ok := w.store.GetCoin(id); ok {
				isChange = coin.IsChange
			} else if out.Covhash == w.covhash {
				isChange = true
			}
			status.Outputs = append(status.Outputs, AnnotatedCoinID{
				CoinData: out,
				IsChange: isChange,
				CoinID:   id.String(),
			})
		}
	}
	return status, nil
}

// Unlock decrypts the wallet's signing key with the given passphrase.  A
// wrong passphrase returns vault.ErrWrongPassphrase and leaves the wallet
// locked.
func (w *Wallet) Unlock(passphrase []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWalletClosed
	}
	if err := w.vault.Unlock(passphrase); err != nil {
		return err
	}
	log.Infof("Wallet %s unlocked", w.name)
	return nil
}

// Lock discards the decrypted signing key.  Locking a locked wallet is a
// no-op.
func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.vault.Lock()
	log.Infof("Wallet %s locked", w.name)
}

// ExportSeed re-authenticates with the passphrase and returns the raw key
// seed.  The lock state does not change.
func (w *Wallet) ExportSeed(passphrase []byte) ([]byte, error) {
	return w.vault.ExportSeed(passphrase)
}

// SignTx fills the signature slot of every input with the wallet's own key.
// It fails with vault.ErrLocked while the wallet is locked.
func (w *Wallet) SignTx(tx *wire.MsgTx) error {
	key, err := w.vault.SignerKey()
	if err != nil {
		return err
	}
	defer zero.PrivKey(key)

	for i := range tx.Inputs {
		covscript.SignInput(tx, i, key)
	}
	return nil
}

// Submit records a transaction as pending, durably persists that change,
// and broadcasts the transaction to the network.  If the broadcast fails
// the pending state is rolled back so the submission leaves no trace, and
// the failure surfaces as a chain.NetworkError.
func (w *Wallet) Submit(ctx context.Context, client chain.Interface, tx *wire.MsgTx) (wire.Hash, error) {
	txHash := tx.TxHash()
	if err := tx.CheckWellFormed(); err != nil {
		return txHash, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return txHash, ErrWalletClosed
	}
	expiry := w.store.LastHeight() + w.policy.ExpiryDelta
	if err := w.store.ApplySubmit(tx, expiry); err != nil {
		w.mu.Unlock()
		return txHash, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if err := w.persistLocked(); err != nil {
		w.store.RollbackSubmit(txHash)
		w.mu.Unlock()
		return txHash, err
	}
	w.mu.Unlock()

	bctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	if err := client.Broadcast(bctx, tx); err != nil {
		w.rollback(txHash)
		return txHash, &chain.NetworkError{Op: "broadcast", Err: err}
	}

	log.Infof("Wallet %s submitted transaction %v", w.name, txHash)
	return txHash, nil
}

// rollback undoes a submission whose broadcast failed.
func (w *Wallet) rollback(txHash wire.Hash) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.RollbackSubmit(txHash); err != nil {
		log.Errorf("Wallet %s: cannot roll back failed submission %v: %v",
			w.name, txHash, err)
		return
	}
	if err := w.persistLocked(); err != nil {
		log.Errorf("Wallet %s: cannot persist rollback of %v: %v",
			w.name, txHash, err)
	}
}

// SendFaucet constructs and submits the fixed-value self-mint transaction
// that funds wallets on test networks.
func (w *Wallet) SendFaucet(ctx context.Context, client chain.Interface) (wire.Hash, error) {
	if w.network != wire.TestNet {
		return wire.Hash{}, ErrUnsupportedNetwork
	}

	// Random auxiliary data makes every faucet transaction unique.
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return wire.Hash{}, err
	}
	tx := &wire.MsgTx{
		Kind: wire.TxKindFaucet,
		Outputs: []wire.CoinData{{
			Covhash:        w.covhash,
			Value:          faucetValue,
			Denom:          wire.DenomBase,
			AdditionalData: data,
		}},
	}
	return w.Submit(ctx, client, tx)
}

// persistLocked durably writes the wallet's record.  The caller must hold
// w.mu.
func (w *Wallet) persistLocked() error {
	if w.closed {
		return ErrWalletClosed
	}
	rec := &walletRecord{
		Name:    w.name,
		Network: w.network,
		PubKey:  wire.HexBytes(w.pub),
		Key:     w.vault.Stored(),
		Coins:   w.store.Snapshot(),
	}
	if err := w.storage.Write(rec); err != nil {
		return fmt.Errorf("wallet %s: %w", w.name, err)
	}
	return nil
}
