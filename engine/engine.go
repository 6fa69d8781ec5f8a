// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/auth"
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/rpc"
)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	Commitment         rpc.Commitment
	SettlePollInterval time.Duration
	SettleTimeout      time.Duration

	// Registerer receives the engine's metrics; nil disables
	// registration.
	Registerer prometheus.Registerer
}

func (o *Options) applyDefaults() {
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentConfirmed
	}
	if o.SettlePollInterval == 0 {
		o.SettlePollInterval = 400 * time.Millisecond
	}
	if o.SettleTimeout == 0 {
		o.SettleTimeout = 15 * time.Second
	}
}

// State is an observer snapshot. The engine is the single writer of
// everything in here.
type State struct {
	Authority   codec.Pubkey
	Counter     codec.Pubkey
	Status      DelegationStatus
	Account     *accounts.Counter
	RollupValue *uint64
	Busy        bool
	LastErr     string
}

// Engine routes every mutating counter operation to the correct ledger
// with the correct signer and keeps observers informed of which ledger
// currently holds the authoritative value.
type Engine struct {
	log     *zap.Logger
	base    *rpc.Client
	rollup  *rpc.Client
	arbiter *auth.Arbiter
	opts    Options
	metrics *metrics

	busy atomic.Bool

	// checkMu serializes delegation status determinations so a re-check
	// triggered by a base-ledger event runs to completion before the
	// next one starts.
	checkMu sync.Mutex

	mu          sync.Mutex
	started     bool
	closed      bool
	authority   codec.Pubkey
	counterAddr codec.Pubkey
	status      DelegationStatus
	account     *accounts.Counter
	rollupValue *uint64
	lastErr     string
	baseSub     *rpc.Subscription
	rollupSub   *rpc.Subscription

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an engine to its two ledgers, the primary signer, and the
// session-issuance collaborator.
func New(
	base *rpc.Client,
	rollup *rpc.Client,
	primary chain.Signer,
	sessions auth.SessionProvider,
	log *zap.Logger,
	opts Options,
) (*Engine, error) {
	opts.applyDefaults()
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Engine{
		log:     log,
		base:    base,
		rollup:  rollup,
		arbiter: auth.NewArbiter(primary, sessions),
		opts:    opts,
		metrics: m,
		status:  StatusChecking,
		bg:      bg,
		cancel:  cancel,
	}, nil
}

// Start binds the engine to [authority]: derives the counter address,
// opens the base-ledger subscription, and kicks off the first delegation
// status determination.
func (e *Engine) Start(ctx context.Context, authority codec.Pubkey) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}

	addr, _, err := accounts.CounterAddress(authority)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.authority = authority
	e.counterAddr = addr
	e.status = StatusChecking
	e.started = true
	e.mu.Unlock()

	sub, err := e.base.Subscribe(ctx, addr)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.baseSub = sub
	e.wg.Add(1)
	e.mu.Unlock()

	go e.baseLoop(sub)

	e.log.Info("engine started",
		zap.Stringer("authority", authority),
		zap.Stringer("counter", addr),
	)
	e.checkDelegation(ctx)
	return nil
}

// Snapshot returns the current observer state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rollupValue *uint64
	if e.rollupValue != nil {
		v := *e.rollupValue
		rollupValue = &v
	}
	var account *accounts.Counter
	if e.account != nil {
		c := *e.account
		account = &c
	}
	return State{
		Authority:   e.authority,
		Counter:     e.counterAddr,
		Status:      e.status,
		Account:     account,
		RollupValue: rollupValue,
		Busy:        e.busy.Load(),
		LastErr:     e.lastErr,
	}
}

// Close tears down both subscriptions and stops background work. Safe to
// call whether or not the subscriptions were ever established.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	baseSub, rollupSub := e.baseSub, e.rollupSub
	e.baseSub, e.rollupSub = nil, nil
	e.mu.Unlock()

	e.cancel()
	_ = baseSub.Close()
	_ = rollupSub.Close()
	e.wg.Wait()
	return nil
}

// address returns the bound counter address, or ErrNotReady before
// Start.
func (e *Engine) address() (codec.Pubkey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return codec.EmptyPubkey, ErrClosed
	}
	if !e.started {
		return codec.EmptyPubkey, ErrNotReady
	}
	return e.counterAddr, nil
}
