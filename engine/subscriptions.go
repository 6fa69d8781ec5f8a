// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/rpc"
)

// reconcileSubscriptions enforces the invariant that the rollup
// subscription exists if and only if the status is delegated. The base
// subscription is opened by Start, rebuilt by baseLoop on connection
// loss, and torn down only by Close.
func (e *Engine) reconcileSubscriptions(ctx context.Context, status DelegationStatus) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	want := status == StatusDelegated
	have := e.rollupSub != nil
	addr := e.counterAddr
	var stale *rpc.Subscription
	if !want && have {
		stale = e.rollupSub
		e.rollupSub = nil
	}
	e.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
		e.log.Debug("rollup subscription torn down", zap.Stringer("counter", addr))
		return
	}
	if !want || have {
		return
	}

	sub, err := e.rollup.Subscribe(ctx, addr)
	if err != nil {
		// the next status determination will retry
		e.log.Warn("rollup subscription failed",
			zap.Stringer("counter", addr),
			zap.Error(err),
		)
		return
	}
	e.mu.Lock()
	if e.closed || e.rollupSub != nil {
		e.mu.Unlock()
		_ = sub.Close()
		return
	}
	e.rollupSub = sub
	e.wg.Add(1)
	e.mu.Unlock()

	go e.rollupLoop(sub)
	e.log.Debug("rollup subscription established", zap.Stringer("counter", addr))
}

// dropBaseSub clears the stored base handle if it still refers to [sub].
// Intentional teardown (Close) clears the handle itself; this path is
// for connection loss.
func (e *Engine) dropBaseSub(sub *rpc.Subscription) {
	e.mu.Lock()
	if e.baseSub == sub {
		e.baseSub = nil
	}
	e.mu.Unlock()
}

func (e *Engine) dropRollupSub(sub *rpc.Subscription) {
	e.mu.Lock()
	if e.rollupSub == sub {
		e.rollupSub = nil
	}
	e.mu.Unlock()
}

// resubscribeBase re-establishes the base subscription after connection
// loss, retrying until it succeeds or the engine closes. The base
// subscription must exist while an address is known; without it the
// engine goes blind to ownership changes.
func (e *Engine) resubscribeBase() {
	e.mu.Lock()
	if e.closed || e.baseSub != nil {
		e.mu.Unlock()
		return
	}
	addr := e.counterAddr
	e.mu.Unlock()

	for {
		sub, err := e.base.Subscribe(e.bg, addr)
		if err == nil {
			e.mu.Lock()
			if e.closed || e.baseSub != nil {
				e.mu.Unlock()
				_ = sub.Close()
				return
			}
			e.baseSub = sub
			e.wg.Add(1)
			e.mu.Unlock()

			go e.baseLoop(sub)
			e.log.Info("base subscription re-established", zap.Stringer("counter", addr))
			e.checkDelegation(e.bg)
			return
		}
		e.log.Warn("base resubscribe failed",
			zap.Stringer("counter", addr),
			zap.Error(err),
		)
		select {
		case <-time.After(e.opts.SettlePollInterval):
		case <-e.bg.Done():
			return
		}
	}
}

// baseLoop consumes base-ledger change events. Each event publishes the
// new account and triggers a fresh status determination, which runs to
// completion before the next event is handled. Ownership may have
// changed as a side effect of the very transaction that produced the
// notification.
func (e *Engine) baseLoop(sub *rpc.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		if ev.Err != nil {
			e.log.Warn("base subscription lost", zap.Error(ev.Err))
			e.dropBaseSub(sub)
			e.resubscribeBase()
			return
		}
		e.metrics.baseEvents.Inc()
		e.publishBase(ev.Info)
		e.checkDelegation(e.bg)
	}
}

// rollupLoop consumes rollup-ledger change events while delegated. It
// publishes the rollup value only and never writes back to the
// base-ledger-derived account.
func (e *Engine) rollupLoop(sub *rpc.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		if ev.Err != nil {
			// Clear the stale handle so the next determination can
			// re-subscribe if the account is still delegated.
			e.log.Warn("rollup subscription lost", zap.Error(ev.Err))
			e.dropRollupSub(sub)
			e.checkDelegation(e.bg)
			return
		}
		e.metrics.rollupEvents.Inc()
		if ev.Info == nil {
			e.setRollupValue(nil)
			continue
		}
		counter, err := accounts.DecodeCounter(ev.Info.Data)
		if err != nil {
			e.log.Warn("undecodable rollup account update", zap.Error(err))
			continue
		}
		e.setRollupValue(&counter.Count)
	}
}

// publishBase records the base-ledger view of the account.
func (e *Engine) publishBase(info *rpc.AccountInfo) {
	if info == nil || len(info.Data) == 0 {
		e.mu.Lock()
		e.account = nil
		e.mu.Unlock()
		return
	}
	counter, err := accounts.DecodeCounter(info.Data)
	if err != nil {
		// Delegated accounts carry delegation-program bytes on the base
		// ledger; the domain view is served by the rollup then.
		e.log.Debug("base account not in domain layout", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.account = counter
	e.mu.Unlock()
}
