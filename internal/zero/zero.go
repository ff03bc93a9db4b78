// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero contains functions to clear sensitive data from memory.
package zero

import "crypto/ed25519"

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear private key material from memory.
func Bytes(b []byte) {
	z := [32]byte{}
	n := uint(copy(b, z[:]))
	for n < uint(len(b)) {
		copy(b[n:], b[:n])
		n <<= 1
	}
}

// Bytea32 clears the 32-byte array by filling it with the zero value.  This
// is used to explicitly clear key derivation output from memory.
func Bytea32(b *[32]byte) {
	*b = [32]byte{}
}

// PrivKey clears the bytes of an ed25519 private key.  The key must not be
// used for signing afterwards.
func PrivKey(k ed25519.PrivateKey) {
	Bytes(k)
}
