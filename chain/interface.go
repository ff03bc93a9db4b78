// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain defines the narrow boundary to the blockchain network client
// and runs the background reconciliation that keeps wallet state in step
// with confirmed network state.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/covsuite/covwallet/wire"
)

// Coin is a confirmed unspent output as reported by the network, together
// with the height at which it confirmed.
type Coin struct {
	ID     wire.CoinID
	Data   wire.CoinData
	Height uint64
}

// Interface is the capability boundary to the blockchain network.  The
// wallet core only ever talks to the network through these four calls.
// Implementations must honor context cancellation; callers always pass a
// bounded-timeout context.
type Interface interface {
	// Broadcast submits a transaction to the network.
	Broadcast(ctx context.Context, tx *wire.MsgTx) error

	// CurrentHeight returns the network's latest confirmed height.
	CurrentHeight(ctx context.Context) (uint64, error)

	// CoinsAt returns the confirmed unspent coins locked to the given
	// covenant hash.
	CoinsAt(ctx context.Context, covhash wire.Hash) ([]Coin, error)

	// TxStatus returns the confirmation height of a transaction, or nil
	// while it is unconfirmed.
	TxStatus(ctx context.Context, txHash wire.Hash) (*uint64, error)
}

// NetworkError wraps a failure of the external network client.  These
// errors are never fatal: submissions roll back and synchronization
// retries with backoff.
type NetworkError struct {
	Op  string
	Err error
}

// Error satisfies the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying client error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError returns whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
