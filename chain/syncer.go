// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// defaultRequestTimeout bounds every network call made during a sync
	// tick.  A wedged network client must never stall the daemon.
	defaultRequestTimeout = 30 * time.Second

	// defaultMaxBackoff caps the per-target retry delay after repeated
	// sync failures.
	defaultMaxBackoff = 10 * time.Minute

	// initialBackoff is the retry delay after a target's first failure.
	// It doubles on every consecutive failure up to the cap.
	initialBackoff = 5 * time.Second
)

// Target is a unit of state that the syncer reconciles against the network.
// Each open wallet registers itself as one target.
type Target interface {
	// SyncName identifies the target in log output.
	SyncName() string

	// SyncTick reconciles the target's state against the network.  The
	// context carries the per-request deadline.
	SyncTick(ctx context.Context, client Interface) error
}

// SyncerConfig bundles the dependencies of a Syncer.
type SyncerConfig struct {
	// Client is the network boundary the syncer reconciles against.
	Client Interface

	// Targets returns the current set of sync targets.  It is invoked on
	// every tick so targets can come and go while the syncer runs.
	Targets func() []Target

	// TickInterval is the period between reconciliation passes.  It is
	// only consulted when Ticker is nil.
	TickInterval time.Duration

	// Ticker overrides the tick source, letting tests drive the syncer
	// manually.
	Ticker ticker.Ticker

	// RequestTimeout bounds each target's tick.  Zero selects the
	// default.
	RequestTimeout time.Duration

	// MaxBackoff caps the per-target retry delay.  Zero selects the
	// default.
	MaxBackoff time.Duration
}

// Syncer periodically walks all registered targets and gives each a chance
// to reconcile against the network.  Targets that fail are retried with
// exponential backoff so a single unreachable backend does not turn the
// sync loop into a busy retry storm.
type Syncer struct {
	cfg SyncerConfig

	// backoff tracks, per target name, when the target may next be
	// synced and how long the following delay would be.
	backoff map[string]*backoffState

	started sync.Once
	stopped sync.Once
	quit    chan struct{}
	wg      sync.WaitGroup
}

type backoffState struct {
	notBefore time.Time
	delay     time.Duration
}

// NewSyncer creates a syncer from the given config.  Start must be called
// before any reconciliation happens.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Ticker == nil {
		cfg.Ticker = ticker.New(cfg.TickInterval)
	}
	return &Syncer{
		cfg:     cfg,
		backoff: make(map[string]*backoffState),
		quit:    make(chan struct{}),
	}
}

// Start launches the background sync loop.  It is idempotent.
func (s *Syncer) Start() {
	s.started.Do(func() {
		log.Info("Chain syncer started")
		s.cfg.Ticker.Resume()
		s.wg.Add(1)
		go s.syncLoop()
	})
}

// Stop halts the sync loop and waits for any in-flight tick to finish.  It
// is idempotent.
func (s *Syncer) Stop() {
	s.stopped.Do(func() {
		close(s.quit)
		s.cfg.Ticker.Stop()
		s.wg.Wait()
		log.Info("Chain syncer stopped")
	})
}

func (s *Syncer) syncLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.cfg.Ticker.Ticks():
			s.syncAll()

		case <-s.quit:
			return
		}
	}
}

// syncAll runs one reconciliation pass over all current targets, skipping
// those still inside their backoff window.
func (s *Syncer) syncAll() {
	now := time.Now()
	for _, target := range s.cfg.Targets() {
		select {
		case <-s.quit:
			return
		default:
		}

		name := target.SyncName()
		if state, ok := s.backoff[name]; ok && now.Before(state.notBefore) {
			continue
		}

		if err := s.syncOne(target); err != nil {
			delay := s.nextDelay(name)
			log.Warnf("Sync of %s failed, next attempt in %v: %v",
				name, delay, err)
			continue
		}
		delete(s.backoff, name)
	}
}

func (s *Syncer) syncOne(target Target) error {
	ctx, cancel := context.WithTimeout(context.Background(),
		s.cfg.RequestTimeout)
	defer cancel()

	log.Tracef("Syncing %s", target.SyncName())
	return target.SyncTick(ctx, s.cfg.Client)
}

// nextDelay records a failure for the named target and returns the delay
// before its next attempt.
func (s *Syncer) nextDelay(name string) time.Duration {
	state, ok := s.backoff[name]
	if !ok {
		state = &backoffState{delay: initialBackoff}
		s.backoff[name] = state
	} else {
		state.delay *= 2
		if state.delay > s.cfg.MaxBackoff {
			state.delay = s.cfg.MaxBackoff
		}
	}
	state.notBefore = time.Now().Add(state.delay)
	return state.delay
}
