// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vault custodies a wallet's signing key.  The key is persisted
// either sealed under a password-derived symmetric key or, when the wallet
// was created without a password, in a recognizable cleartext mode.  At
// runtime the vault is a two-state machine: Locked, where no key material is
// in memory, and Unlocked, where the decrypted key is held until an explicit
// Lock zeroes it again.
package vault

import (
	"crypto/ed25519"
	"errors"
	"sync"

	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/wire"
)

// ErrMalformedKey is returned when a persisted key record has neither a
// cleartext nor an encrypted form.
var ErrMalformedKey = errors.New("persisted key is malformed")

// PersistentKey is the durable form of a signing key.  Exactly one of the
// two fields is set: Cleartext holds the raw seed when no password protects
// the wallet, and Encrypted holds the sealed seed otherwise.
type PersistentKey struct {
	Cleartext wire.HexBytes `json:"cleartext,omitempty"`
	Encrypted *EncryptedKey `json:"encrypted,omitempty"`
}

// NewPersistentKey encrypts the private key under the passphrase, or stores
// the seed in cleartext mode when the passphrase is empty.
func NewPersistentKey(priv ed25519.PrivateKey, passphrase []byte) (*PersistentKey, error) {
	if len(passphrase) == 0 {
		return &PersistentKey{Cleartext: priv.Seed()}, nil
	}
	enc, err := Encrypt(priv, passphrase)
	if err != nil {
		return nil, err
	}
	return &PersistentKey{Encrypted: enc}, nil
}

// IsEncrypted returns whether unlocking this key requires a passphrase.
func (k *PersistentKey) IsEncrypted() bool {
	return k.Encrypted != nil
}

// decrypt recovers the private key, requiring a passphrase only in
// encrypted mode.
func (k *PersistentKey) decrypt(passphrase []byte) (ed25519.PrivateKey, error) {
	switch {
	case k.Encrypted != nil:
		return k.Encrypted.Decrypt(passphrase)
	case len(k.Cleartext) == ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(k.Cleartext), nil
	default:
		return nil, ErrMalformedKey
	}
}

// Vault owns the lock state machine around one wallet's persisted key.
type Vault struct {
	mtx sync.Mutex

	stored *PersistentKey

	// signer is non-nil exactly while the vault is unlocked.
	signer ed25519.PrivateKey
}

// New creates a locked vault around a persisted key.
func New(stored *PersistentKey) *Vault {
	return &Vault{stored: stored}
}

// IsLocked returns whether the vault currently holds no decrypted key.
func (v *Vault) IsLocked() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	return v.signer == nil
}

// Unlock decrypts the stored key and transitions the vault to the unlocked
// state.  For a cleartext-mode key any passphrase (including none) succeeds.
// A wrong passphrase returns ErrWrongPassphrase and leaves the vault locked.
// Unlocking an already unlocked vault re-derives and replaces the cached
// key.
func (v *Vault) Unlock(passphrase []byte) error {
	priv, err := v.stored.decrypt(passphrase)
	if err != nil {
		return err
	}

	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.signer != nil {
		zero.PrivKey(v.signer)
	}
	v.signer = priv
	return nil
}

// Lock zeroes the decrypted key and transitions the vault to the locked
// state.  Locking an already locked vault is a no-op.
func (v *Vault) Lock() {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.signer != nil {
		zero.PrivKey(v.signer)
		v.signer = nil
	}
}

// SignerKey returns a copy of the decrypted signing key, or ErrLocked when
// the vault is locked.  The caller must zero the copy once the signing
// operation completes.
func (v *Vault) SignerKey() (ed25519.PrivateKey, error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.signer == nil {
		return nil, ErrLocked
	}
	keyCopy := make(ed25519.PrivateKey, len(v.signer))
	copy(keyCopy, v.signer)
	return keyCopy, nil
}

// ExportSeed decrypts and returns the raw key seed without changing the
// vault's lock state.  It is used by the key-export operation, which always
// re-authenticates with the passphrase.
func (v *Vault) ExportSeed(passphrase []byte) ([]byte, error) {
	priv, err := v.stored.decrypt(passphrase)
	if err != nil {
		return nil, err
	}
	seed := priv.Seed()
	zero.PrivKey(priv)
	return seed, nil
}

// Stored returns the persisted form of the key for inclusion in the
// wallet's durable record.
func (v *Vault) Stored() *PersistentKey {
	return v.stored
}
