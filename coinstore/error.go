// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinstore

import "fmt"

// ErrorCode identifies a kind of store error.
type ErrorCode int

// These constants identify the specific kinds of StoreError.
const (
	// ErrUnknownCoin indicates an operation referenced a coin that is not
	// in the wallet's unspent set.  This includes coins the wallet never
	// owned and coins already consumed by a confirmed transaction.
	ErrUnknownCoin ErrorCode = iota

	// ErrCoinPendingSpent indicates an operation tried to consume a coin
	// that an earlier submitted transaction already spends.
	ErrCoinPendingSpent

	// ErrUnknownTx indicates the referenced transaction is not tracked by
	// the store.
	ErrUnknownTx

	// ErrDuplicateTx indicates an attempt to record a transaction hash
	// the store already tracks.
	ErrDuplicateTx

	// ErrConfirmedTx indicates an attempt to roll back or evict a
	// transaction that has already confirmed.
	ErrConfirmedTx
)

// errorCodeStrings maps ErrorCode values back to their constant names for
// pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownCoin:      "ErrUnknownCoin",
	ErrCoinPendingSpent: "ErrCoinPendingSpent",
	ErrUnknownTx:        "ErrUnknownTx",
	ErrDuplicateTx:      "ErrDuplicateTx",
	ErrConfirmedTx:      "ErrConfirmedTx",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during store
// operation.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	return e.Description
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string) StoreError {
	return StoreError{ErrorCode: c, Description: desc}
}

// IsError returns whether err is a StoreError with the given code.
func IsError(err error, code ErrorCode) bool {
	serr, ok := err.(StoreError)
	return ok && serr.ErrorCode == code
}
