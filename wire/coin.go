// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// HexBytes is a byte slice which serializes to JSON as a hex string.  It is
// used for auxiliary data, covenant scripts, and signatures.
type HexBytes []byte

// MarshalJSON encodes the bytes as a hex JSON string.
func (hb HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(hb))
}

// UnmarshalJSON decodes a hex JSON string.
func (hb *HexBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*hb = decoded
	return nil
}

// CoinID uniquely identifies a transaction output by the hash of its
// originating transaction and the output's index within it.
type CoinID struct {
	TxHash Hash
	Index  uint8
}

// NewCoinID returns the coin identifier for output index of the transaction
// with hash txHash.
func NewCoinID(txHash Hash, index uint8) CoinID {
	return CoinID{TxHash: txHash, Index: index}
}

// String serializes the coin identifier as "{txhash}-{index}".
func (c CoinID) String() string {
	return fmt.Sprintf("%s-%d", c.TxHash, c.Index)
}

// MarshalJSON encodes the coin identifier in its string form.
func (c CoinID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a coin identifier from its string form.
func (c *CoinID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCoinID(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCoinID parses a coin identifier from its "{txhash}-{index}" string
// form.
func ParseCoinID(s string) (CoinID, error) {
	var c CoinID
	sep := strings.LastIndexByte(s, '-')
	if sep < 0 {
		return c, fmt.Errorf("coin id %q missing index separator", s)
	}
	txHash, err := NewHashFromStr(s[:sep])
	if err != nil {
		return c, fmt.Errorf("coin id %q: %w", s, err)
	}
	index, err := strconv.ParseUint(s[sep+1:], 10, 8)
	if err != nil {
		return c, fmt.Errorf("coin id %q: %w", s, err)
	}
	c.TxHash = txHash
	c.Index = uint8(index)
	return c, nil
}

// CoinData describes a transaction output: the covenant hash the value is
// locked to, the value itself, its denomination, and any auxiliary data the
// creating transaction attached.
type CoinData struct {
	Covhash        Hash     `json:"covhash"`
	Value          Amount   `json:"value"`
	Denom          Denom    `json:"denom"`
	AdditionalData HexBytes `json:"additional_data"`
}
