// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zero

import (
	"bytes"
	"testing"
)

func TestBytes(t *testing.T) {
	tests := []int{0, 1, 31, 32, 33, 127, 256}
	for _, size := range tests {
		b := make([]byte, size)
		for i := range b {
			b[i] = 0xff
		}
		Bytes(b)
		if !bytes.Equal(b, make([]byte, size)) {
			t.Errorf("Bytes failed to zero %d-byte slice", size)
		}
	}
}

func TestBytea32(t *testing.T) {
	var b [32]byte
	for i := range b {
		b[i] = 0xaa
	}
	Bytea32(&b)
	if b != ([32]byte{}) {
		t.Error("Bytea32 failed to zero array")
	}
}
