// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/wire"
)

var (
	// ErrWrongPassphrase is returned when an encrypted key fails to
	// authenticate under the supplied passphrase.  The stored key is
	// untouched; decryption either yields the original key or this error,
	// never garbage key material.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrLocked is returned when signing authorization is requested from
	// a locked vault.
	ErrLocked = errors.New("wallet is locked")
)

// KDFParams are the tunable costs of the argon2id key derivation.  They are
// stored next to the ciphertext so that keys encrypted under older defaults
// remain decryptable.
type KDFParams struct {
	MemoryKiB uint32 `json:"mem_cost"`
	Time      uint32 `json:"time_cost"`
}

// DefaultKDFParams are the costs used for newly encrypted keys.  Derivation
// is deliberately slow and memory-hard.
var DefaultKDFParams = KDFParams{
	MemoryKiB: 32 * 1024,
	Time:      10,
}

// saltSize is the size of the random argon2id salt.
const saltSize = 16

// EncryptedKey is a signing key seed sealed under a password-derived
// symmetric key.  The chacha20-poly1305 tag makes decryption under a wrong
// passphrase a verifiable failure.
type EncryptedKey struct {
	Salt       wire.HexBytes `json:"salt"`
	KDF        KDFParams     `json:"kdf"`
	Ciphertext wire.HexBytes `json:"ciphertext"`
}

// deriveKey runs argon2id over the passphrase with the stored salt and
// costs.  Single-lane derivation keeps the cost profile independent of the
// host's core count.
func (k KDFParams) deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, k.Time, k.MemoryKiB, 1,
		chacha20poly1305.KeySize)
}

// Encrypt seals the seed of the given private key under the passphrase using
// the default KDF costs.
func Encrypt(priv ed25519.PrivateKey, passphrase []byte) (*EncryptedKey, error) {
	return encrypt(priv, passphrase, DefaultKDFParams)
}

func encrypt(priv ed25519.PrivateKey, passphrase []byte, params KDFParams) (*EncryptedKey, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cannot generate salt: %w", err)
	}

	key := params.deriveKey(passphrase, salt)
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	// The derived key is unique per salt, so a fixed nonce is safe.
	nonce := make([]byte, chacha20poly1305.NonceSize)
	seed := priv.Seed()
	ciphertext := aead.Seal(nil, nonce, seed, nil)
	zero.Bytes(seed)

	return &EncryptedKey{
		Salt:       salt,
		KDF:        params,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt recovers the private key sealed in the encrypted key.  A wrong
// passphrase fails the authentication tag and returns ErrWrongPassphrase.
func (e *EncryptedKey) Decrypt(passphrase []byte) (ed25519.PrivateKey, error) {
	key := e.KDF.deriveKey(passphrase, e.Salt)
	defer zero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	seed, err := aead.Open(nil, nonce, e.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	priv := ed25519.NewKeyFromSeed(seed)
	zero.Bytes(seed)
	return priv, nil
}
