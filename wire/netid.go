// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/json"
	"fmt"
)

// NetID tags which network a wallet, coin, or transaction belongs to.
// Entities from different networks are mutually incompatible and operations
// must reject mixing them.
type NetID uint8

const (
	// MainNet represents the main network.
	MainNet NetID = 0x01

	// TestNet represents the public test network.
	TestNet NetID = 0x02
)

// netIDStrings maps networks to their human-readable names.
var netIDStrings = map[NetID]string{
	MainNet: "mainnet",
	TestNet: "testnet",
}

// String returns the NetID in human-readable form.
func (n NetID) String() string {
	if s, ok := netIDStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("unknown network (%d)", uint8(n))
}

// MarshalJSON encodes the network as its name.
func (n NetID) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON decodes a network name.
func (n *NetID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for id, name := range netIDStrings {
		if name == s {
			*n = id
			return nil
		}
	}
	return fmt.Errorf("unknown network %q", s)
}
