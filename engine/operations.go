// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/actions"
	"github.com/ephemlabs/dualcounter/chain"
	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/consts"
	"github.com/ephemlabs/dualcounter/rpc"
)

// begin opens one operation: the busy flag is raised and the error slot
// cleared before the attempt.
func (e *Engine) begin() {
	e.busy.Store(true)
	e.mu.Lock()
	e.lastErr = ""
	e.mu.Unlock()
}

// finish closes one operation on every exit path. Only genuine failures
// populate the error slot; expected absence never does.
func (e *Engine) finish(err error) {
	if err != nil && !errors.Is(err, rpc.ErrAccountNotFound) {
		e.metrics.opFailures.Inc()
		e.mu.Lock()
		e.lastErr = err.Error()
		e.mu.Unlock()
	}
	e.busy.Store(false)
}

// Initialize creates the counter account on the base ledger.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.submitBase(ctx, &actions.Initialize{}, nil)
}

// Increment adds one to the counter on the base ledger.
func (e *Engine) Increment(ctx context.Context) error {
	return e.submitBase(ctx, &actions.Increment{}, nil)
}

// Decrement subtracts one from the counter on the base ledger.
func (e *Engine) Decrement(ctx context.Context) error {
	return e.submitBase(ctx, &actions.Decrement{}, nil)
}

// Set overwrites the counter value on the base ledger.
func (e *Engine) Set(ctx context.Context, value uint64) error {
	return e.submitBase(ctx, &actions.Set{Value: value}, nil)
}

// IncrementOnRollup adds one to the counter on the rollup ledger.
func (e *Engine) IncrementOnRollup(ctx context.Context) error {
	return e.performRollupAction(ctx, &actions.Increment{})
}

// DecrementOnRollup subtracts one from the counter on the rollup ledger.
func (e *Engine) DecrementOnRollup(ctx context.Context) error {
	return e.performRollupAction(ctx, &actions.Decrement{})
}

// SetOnRollup overwrites the counter value on the rollup ledger.
func (e *Engine) SetOnRollup(ctx context.Context, value uint64) error {
	return e.performRollupAction(ctx, &actions.Set{Value: value})
}

// submitBase runs one base-ledger operation: build against the base
// anchor, sign with the primary credential, submit with the required
// commitment, then refresh the account view.
func (e *Engine) submitBase(ctx context.Context, action chain.Action, validator *codec.Pubkey) (err error) {
	e.begin()
	defer func() { e.finish(err) }()
	return e.submitBaseInner(ctx, action, validator)
}

func (e *Engine) submitBaseInner(ctx context.Context, action chain.Action, validator *codec.Pubkey) error {
	addr, err := e.address()
	if err != nil {
		return err
	}
	signer := e.arbiter.Primary()
	if signer == nil {
		return fmt.Errorf("%w: no primary credential", ErrNotReady)
	}

	sig, err := e.buildAndSubmit(ctx, e.base, action, chain.Accounts{
		Counter:   addr,
		Signer:    signer.PublicKey(),
		Validator: validator,
	}, signer, signer.PublicKey(), rpc.SubmitOptions{Commitment: e.opts.Commitment})
	if err != nil {
		return err
	}
	e.metrics.baseTxsSubmitted.Inc()
	e.log.Info("base transaction confirmed",
		zap.String("action", action.Method()),
		zap.Stringer("signature", sig),
	)
	e.refreshBase(ctx, addr)
	return nil
}

// performRollupAction runs one rollup-targeted operation, parameterized
// by which remote method to invoke. Requires delegated status; the
// signer is arbitrated fresh per call; the transaction is built against
// the rollup's anchor, never the base's, and preflight is skipped for
// latency.
func (e *Engine) performRollupAction(ctx context.Context, action chain.Action) (err error) {
	e.begin()
	defer func() { e.finish(err) }()

	addr, err := e.address()
	if err != nil {
		return err
	}
	if e.currentStatus() != StatusDelegated {
		return fmt.Errorf("%w: cannot %s on rollup", ErrNotDelegated, action.Method())
	}

	sel := e.arbiter.Select(consts.CounterProgram)
	if sel.Signer == nil {
		return fmt.Errorf("%w: no usable signer", ErrNotReady)
	}
	sig, err := e.buildAndSubmit(ctx, e.rollup, action, chain.Accounts{
		Counter:      addr,
		Signer:       sel.Signer.PublicKey(),
		SessionToken: sel.SessionToken,
	}, sel.Signer, sel.FeePayer, rpc.SubmitOptions{
		SkipPreflight: true,
		Commitment:    e.opts.Commitment,
	})
	if err != nil {
		return fmt.Errorf("failed to %s on rollup: %w", action.Method(), err)
	}
	e.metrics.rollupTxsSubmitted.Inc()
	e.log.Info("rollup transaction confirmed",
		zap.String("action", action.Method()),
		zap.Bool("session", sel.Session()),
		zap.Stringer("signature", sig),
	)

	// opportunistic refresh; a miss is non-fatal
	if counter, err := e.rollup.Counter(ctx, addr); err == nil {
		e.setRollupValue(&counter.Count)
	}
	return nil
}

// buildAndSubmit assembles, signs, submits, and awaits one transaction
// on [cli].
func (e *Engine) buildAndSubmit(
	ctx context.Context,
	cli *rpc.Client,
	action chain.Action,
	accts chain.Accounts,
	signer chain.Signer,
	feePayer codec.Pubkey,
	opts rpc.SubmitOptions,
) (chain.Signature, error) {
	keys, err := action.Keys(accts)
	if err != nil {
		return chain.EmptySignature, err
	}
	data, err := action.Data()
	if err != nil {
		return chain.EmptySignature, err
	}
	blockhash, err := cli.LatestBlockhash(ctx)
	if err != nil {
		return chain.EmptySignature, fmt.Errorf("failed to fetch %s anchor: %w", cli.Name(), err)
	}

	tx := chain.NewTransaction(feePayer, blockhash, chain.Instruction{
		Program: consts.CounterProgram,
		Keys:    keys,
		Data:    data,
	})
	if err := tx.Sign(signer); err != nil {
		return chain.EmptySignature, err
	}
	sig, err := cli.SubmitTx(ctx, tx, opts)
	if err != nil {
		return chain.EmptySignature, err
	}
	if err := cli.AwaitSignature(ctx, sig, opts.Commitment); err != nil {
		return chain.EmptySignature, err
	}
	return sig, nil
}

// Delegate transfers the account to the delegation program, then polls
// until the status determination converges. The poll is best-effort:
// callers may still observe undelegated briefly and should re-check.
func (e *Engine) Delegate(ctx context.Context, validator *codec.Pubkey) (err error) {
	e.begin()
	defer func() { e.finish(err) }()

	if err := e.submitBaseInner(ctx, &actions.Delegate{}, validator); err != nil {
		return err
	}
	if !e.awaitStatus(ctx, StatusDelegated) {
		e.log.Warn("delegation did not settle before timeout")
	}
	return nil
}

// Commit pushes the rollup's current state back to the base ledger
// without leaving the rollup. The commit instruction is built from the
// base-ledger program definition but targeted at the rollup, whose
// execution environment understands it and settles to the base ledger.
func (e *Engine) Commit(ctx context.Context) (err error) {
	e.begin()
	defer func() { e.finish(err) }()

	addr, err := e.address()
	if err != nil {
		return err
	}
	if e.currentStatus() != StatusDelegated {
		return fmt.Errorf("%w: cannot commit", ErrNotDelegated)
	}

	sel := e.arbiter.Select(consts.CounterProgram)
	if sel.Signer == nil {
		return fmt.Errorf("%w: no usable signer", ErrNotReady)
	}
	sig, err := e.buildAndSubmit(ctx, e.rollup, &actions.Commit{}, chain.Accounts{
		Counter:      addr,
		Signer:       sel.Signer.PublicKey(),
		SessionToken: sel.SessionToken,
	}, sel.Signer, sel.FeePayer, rpc.SubmitOptions{
		SkipPreflight: true,
		Commitment:    e.opts.Commitment,
	})
	if err != nil {
		return err
	}
	e.metrics.rollupTxsSubmitted.Inc()

	// Correlate the rollup commit to its base-ledger settlement. Local
	// test environments have no proof to offer; that is not an error.
	if baseSig, err := e.rollup.CommitmentSignature(ctx, sig); err == nil && baseSig != "" {
		e.log.Info("commit settled on base ledger",
			zap.Stringer("rollupSignature", sig),
			zap.String("baseSignature", baseSig),
		)
	}
	e.refreshBase(ctx, addr)
	return nil
}

// Undelegate ends delegation from the rollup side, optimistically forces
// the local view to undelegated, then re-checks and refreshes.
func (e *Engine) Undelegate(ctx context.Context) (err error) {
	e.begin()
	defer func() { e.finish(err) }()

	addr, err := e.address()
	if err != nil {
		return err
	}
	if e.currentStatus() != StatusDelegated {
		return fmt.Errorf("%w: cannot undelegate", ErrNotDelegated)
	}

	sel := e.arbiter.Select(consts.CounterProgram)
	if sel.Signer == nil {
		return fmt.Errorf("%w: no usable signer", ErrNotReady)
	}
	_, err = e.buildAndSubmit(ctx, e.rollup, &actions.Undelegate{}, chain.Accounts{
		Counter:      addr,
		Signer:       sel.Signer.PublicKey(),
		SessionToken: sel.SessionToken,
	}, sel.Signer, sel.FeePayer, rpc.SubmitOptions{
		SkipPreflight: true,
		Commitment:    e.opts.Commitment,
	})
	if err != nil {
		return err
	}
	e.metrics.rollupTxsSubmitted.Inc()

	// optimistic update ahead of the real determination
	e.resolveStatus(StatusUndelegated)
	e.reconcileSubscriptions(ctx, StatusUndelegated)

	if !e.awaitStatus(ctx, StatusUndelegated) {
		e.log.Warn("undelegation did not settle before timeout")
	}
	e.refreshBase(ctx, addr)
	return nil
}

// Fetch reads the authoritative account view: the base-ledger account
// and, while delegated, the rollup value, concurrently. An absent
// account is an absent-Account state, never an error.
func (e *Engine) Fetch(ctx context.Context) (*accounts.Counter, error) {
	addr, err := e.address()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var baseCounter *accounts.Counter
	g.Go(func() error {
		counter, err := e.base.Counter(gctx, addr)
		if errors.Is(err, rpc.ErrAccountNotFound) || errors.Is(err, accounts.ErrBadDiscriminator) {
			// absent, or delegation-program bytes while delegated
			return nil
		}
		if err != nil {
			return err
		}
		baseCounter = counter
		return nil
	})
	if e.currentStatus() == StatusDelegated {
		g.Go(func() error {
			counter, err := e.rollup.Counter(gctx, addr)
			if err != nil {
				// may not be replicated yet
				return nil
			}
			e.setRollupValue(&counter.Count)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.account = baseCounter
	e.mu.Unlock()
	return baseCounter, nil
}

// CheckDelegation forces a fresh delegation status determination.
func (e *Engine) CheckDelegation(ctx context.Context) DelegationStatus {
	return e.checkDelegation(ctx)
}

func (e *Engine) currentStatus() DelegationStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// awaitStatus polls the delegation determination until it converges on
// [want] or the settle deadline elapses. Bounded polling replaces a
// single blind settle sleep so callers see a converged status as soon as
// the ledgers agree.
func (e *Engine) awaitStatus(ctx context.Context, want DelegationStatus) bool {
	deadline := time.Now().Add(e.opts.SettleTimeout)
	for {
		if e.checkDelegation(ctx) == want {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		select {
		case <-time.After(e.opts.SettlePollInterval):
		case <-ctx.Done():
			return false
		}
	}
}

// refreshBase updates the base-ledger account view after an operation.
// Absence is expected prior to initialization.
func (e *Engine) refreshBase(ctx context.Context, addr codec.Pubkey) {
	counter, err := e.base.Counter(ctx, addr)
	if err != nil {
		if !errors.Is(err, rpc.ErrAccountNotFound) {
			e.log.Debug("account refresh failed", zap.Error(err))
		}
		return
	}
	e.mu.Lock()
	e.account = counter
	e.mu.Unlock()
}
