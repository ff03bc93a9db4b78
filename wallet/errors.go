// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/covsuite/covwallet/wire"
)

var (
	// ErrNotFound is returned when the named wallet does not exist.
	ErrNotFound = errors.New("wallet not found")

	// ErrAlreadyExists is returned when creating a wallet whose name is
	// already taken.
	ErrAlreadyExists = errors.New("wallet already exists")

	// ErrInvalidName is returned when a wallet name contains characters
	// outside [A-Za-z0-9_] or is empty.
	ErrInvalidName = errors.New("invalid wallet name")

	// ErrEmptyOutputs is returned when transaction preparation is asked
	// to build a transaction with no desired outputs.
	ErrEmptyOutputs = errors.New("no desired outputs")

	// ErrUnsupportedNetwork is returned when a test-network-only
	// operation is attempted on the main network.
	ErrUnsupportedNetwork = errors.New("operation not supported on this network")

	// ErrInvalidTransaction is returned when a submitted transaction is
	// malformed or spends coins this wallet does not own.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrBadSeed is returned when an imported secret is not a valid key
	// seed.
	ErrBadSeed = errors.New("imported secret is not a valid key seed")

	// ErrWalletClosed is returned when an operation races wallet
	// deletion.
	ErrWalletClosed = errors.New("wallet has been closed")
)

// InsufficientFundsError is returned by transaction preparation when the
// wallet's spendable coins of one denomination cannot cover the desired
// outputs plus fee.
type InsufficientFundsError struct {
	Denom     wire.Denom
	Needed    wire.Amount
	Available wire.Amount
}

// Error satisfies the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d of denom %v, %d spendable",
		e.Needed, e.Denom, e.Available)
}

// IsInsufficientFunds returns whether err is (or wraps) an
// InsufficientFundsError.
func IsInsufficientFunds(err error) bool {
	var fundsErr *InsufficientFundsError
	return errors.As(err, &fundsErr)
}
