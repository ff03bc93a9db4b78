// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"fmt"
)

// DenomSize is the fixed width of a denomination identifier.
const DenomSize = 4

// Denom identifies a fungible asset type tracked by the chain.  It is a
// fixed-width identifier which serializes as hex.
type Denom [DenomSize]byte

var (
	// DenomBase is the chain's base denomination, in which transaction
	// fees are always paid.
	DenomBase = Denom{'b', 0x00, 0x00, 0x00}

	// DenomNewCoin is the placeholder denomination used by minting
	// transactions for outputs whose real denomination is only assigned
	// on confirmation.  It is always exempt from balancing.
	DenomNewCoin = Denom{'n', 0x00, 0x00, 0x00}
)

// String returns the denomination as a hex string.
func (d Denom) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the denomination as hex.  Text marshaling (rather
// than JSON marshaling) lets denominations serve as JSON object keys in
// balance maps.
func (d Denom) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex denomination.
func (d *Denom) UnmarshalText(b []byte) error {
	parsed, err := ParseDenom(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDenom parses a hex-encoded denomination identifier.
func ParseDenom(s string) (Denom, error) {
	var d Denom
	if len(s) != DenomSize*2 {
		return d, fmt.Errorf("denom string %q is not %d characters",
			s, DenomSize*2)
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, err
	}
	return d, nil
}

// Amount is a nonnegative quantity of some denomination, counted in the
// asset's smallest indivisible unit.
type Amount uint64

// UnitsPerCoin is the number of smallest units in one whole coin of any
// denomination.
const UnitsPerCoin Amount = 1e6
