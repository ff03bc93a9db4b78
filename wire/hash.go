// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of the array used to store hashes.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a
// hash string that has too many characters.
var ErrHashStrSize = fmt.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// Hash is used in several of the chain messages and common structures.  It
// typically represents the blake2b hash of data, such as a serialized
// transaction or a spend covenant.
type Hash [HashSize]byte

// HashB calculates the blake2b hash of the passed bytes.
func HashB(b []byte) Hash {
	return blake2b.Sum256(b)
}

// String returns the Hash as the hexadecimal string of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns whether the hash is all zeroes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText encodes the hash as hex, which also lets hashes serve as
// JSON object keys.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash) UnmarshalText(b []byte) error {
	decoded, err := NewHashFromStr(string(b))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// NewHashFromStr creates a Hash from a hash string.  The string must be
// exactly 64 hex characters.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash
	if len(s) > MaxHashStringSize {
		return h, ErrHashStrSize
	}
	if len(s) != MaxHashStringSize {
		return h, fmt.Errorf("hash string %q is not %d characters",
			s, MaxHashStringSize)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, err
	}
	return h, nil
}
