// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/consts"
	"github.com/ephemlabs/dualcounter/rpc"
)

// checkDelegation determines the delegation status from base-ledger
// account metadata. It runs opportunistically and must never block the
// rest of the engine: any transport failure resolves conservatively to
// undelegated with the error logged, not surfaced.
func (e *Engine) checkDelegation(ctx context.Context) DelegationStatus {
	e.checkMu.Lock()
	defer e.checkMu.Unlock()

	addr, err := e.address()
	if err != nil {
		return StatusChecking
	}
	e.metrics.statusChecks.Inc()
	e.setStatus(StatusChecking)

	owner, err := e.base.Owner(ctx, addr)
	switch {
	case errors.Is(err, rpc.ErrAccountNotFound):
		e.resolveStatus(StatusUndelegated)
	case err != nil:
		e.log.Warn("delegation check failed, assuming undelegated",
			zap.Stringer("counter", addr),
			zap.Error(err),
		)
		e.resolveStatus(StatusUndelegated)
	case owner == consts.DelegationProgram:
		e.resolveStatus(StatusDelegated)
		// Best-effort display read: the account may be delegated but not
		// yet replicated to the rollup, so a miss does not downgrade the
		// status.
		if counter, err := e.rollup.Counter(ctx, addr); err == nil {
			e.setRollupValue(&counter.Count)
		} else if !errors.Is(err, rpc.ErrAccountNotFound) {
			e.log.Debug("rollup value unavailable",
				zap.Stringer("counter", addr),
				zap.Error(err),
			)
		}
	default:
		e.resolveStatus(StatusUndelegated)
	}

	e.mu.Lock()
	status := e.status
	e.mu.Unlock()
	e.reconcileSubscriptions(ctx, status)
	return status
}

func (e *Engine) setStatus(s DelegationStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

// resolveStatus finalizes one determination, clearing the cached rollup
// value whenever the account resolves as not delegated.
func (e *Engine) resolveStatus(s DelegationStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status = s
	if s != StatusDelegated {
		e.rollupValue = nil
	}
}

func (e *Engine) setRollupValue(v *uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v == nil {
		e.rollupValue = nil
		return
	}
	value := *v
	e.rollupValue = &value
}
