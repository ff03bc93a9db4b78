// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/covsuite/covwallet/wire"
)

// stubClient implements Interface with canned responses.  The syncer never
// touches the client itself, so the zero value suffices here.
type stubClient struct{}

func (stubClient) Broadcast(context.Context, *wire.MsgTx) error { return nil }
func (stubClient) CurrentHeight(context.Context) (uint64, error) {
	return 0, nil
}
func (stubClient) CoinsAt(context.Context, wire.Hash) ([]Coin, error) {
	return nil, nil
}
func (stubClient) TxStatus(context.Context, wire.Hash) (*uint64, error) {
	return nil, nil
}

// countingTarget records tick invocations and fails a configurable number of
// times before succeeding.
type countingTarget struct {
	name     string
	ticks    chan struct{}
	failures int
}

func (c *countingTarget) SyncName() string { return c.name }

func (c *countingTarget) SyncTick(ctx context.Context, _ Interface) error {
	c.ticks <- struct{}{}
	if c.failures > 0 {
		c.failures--
		return errors.New("transient failure")
	}
	return nil
}

func newCountingTarget(name string, failures int) *countingTarget {
	return &countingTarget{
		name:     name,
		ticks:    make(chan struct{}, 16),
		failures: failures,
	}
}

func waitTick(t *testing.T, target *countingTarget) {
	t.Helper()
	select {
	case <-target.ticks:
	case <-time.After(5 * time.Second):
		t.Fatalf("target %s was not ticked", target.name)
	}
}

func TestSyncerTicksAllTargets(t *testing.T) {
	force := ticker.NewForce(time.Hour)
	a := newCountingTarget("a", 0)
	b := newCountingTarget("b", 0)

	s := NewSyncer(SyncerConfig{
		Client:  stubClient{},
		Targets: func() []Target { return []Target{a, b} },
		Ticker:  force,
	})
	s.Start()
	defer s.Stop()

	force.Force <- time.Now()
	waitTick(t, a)
	waitTick(t, b)
}

func TestSyncerBacksOffFailingTarget(t *testing.T) {
	force := ticker.NewForce(time.Hour)
	healthy := newCountingTarget("healthy", 0)
	flaky := newCountingTarget("flaky", 1)

	s := NewSyncer(SyncerConfig{
		Client:  stubClient{},
		Targets: func() []Target { return []Target{flaky, healthy} },
		Ticker:  force,
	})
	s.Start()
	defer s.Stop()

	force.Force <- time.Now()
	waitTick(t, flaky)
	waitTick(t, healthy)

	// The flaky target failed, so an immediate second pass skips it while
	// the healthy target runs again.
	force.Force <- time.Now()
	waitTick(t, healthy)
	select {
	case <-flaky.ticks:
		t.Fatal("failing target was ticked inside its backoff window")
	case <-time.After(100 * time.Millisecond):
	}
}
