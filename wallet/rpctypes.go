// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "github.com/covsuite/covwallet/wire"

// PrepareTxRequest describes a transaction the caller wants built.  Only
// Outputs is mandatory; everything else refines how balancing and signing
// proceed.
type PrepareTxRequest struct {
	// Outputs are the desired payment outputs, in caller order.  Change
	// outputs are appended strictly after them.
	Outputs []wire.CoinData `json:"outputs"`

	// Inputs are coins that must be consumed regardless of what coin
	// selection would pick.
	Inputs []wire.CoinID `json:"inputs,omitempty"`

	// Kind overrides the transaction kind; nil means a normal transfer.
	Kind *wire.TxKind `json:"kind,omitempty"`

	// Data is an arbitrary auxiliary payload.
	Data wire.HexBytes `json:"data,omitempty"`

	// Covenants are extra covenant scripts to carry alongside the
	// wallet's own spend covenant.
	Covenants []wire.HexBytes `json:"covenants,omitempty"`

	// Nobalance lists denominations exempted from value conservation.
	Nobalance []wire.Denom `json:"nobalance,omitempty"`

	// FeeBallast inflates the estimated transaction size by this many
	// bytes, padding the fee for covenants the caller will attach later.
	FeeBallast uint64 `json:"fee_ballast,omitempty"`

	// SigningKey optionally overrides the wallet's own key with a
	// hex-encoded seed.  When set, the transaction is signed with it even
	// while the wallet is locked.
	SigningKey string `json:"signing_key,omitempty"`
}

// Summary is the per-wallet line of the wallet list: balances, network,
// address, and lock state.
type Summary struct {
	Balance map[wire.Denom]wire.Amount `json:"balance"`
	Staked  wire.Amount                `json:"staked"`
	Network wire.NetID                 `json:"network"`
	Address string                     `json:"address"`
	Locked  bool                       `json:"locked"`
}

// AnnotatedCoinID pairs an output of a tracked transaction with its coin
// identifier and whether the wallet attributes it to itself as change.
type AnnotatedCoinID struct {
	CoinData wire.CoinData `json:"coin_data"`
	IsChange bool          `json:"is_change"`
	CoinID   string        `json:"coin_id"`
}

// TransactionStatus reports everything the wallet knows about one tracked
// transaction.
type TransactionStatus struct {
	Raw             *wire.MsgTx       `json:"raw,omitempty"`
	ConfirmedHeight *uint64           `json:"confirmed_height"`
	Outputs         []AnnotatedCoinID `json:"outputs"`
}
