// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/auth"
	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/consts"
	"github.com/ephemlabs/dualcounter/engine"
	"github.com/ephemlabs/dualcounter/ledgertest"
	"github.com/ephemlabs/dualcounter/rpc"
)

const (
	eventuallyWait = 5 * time.Second
	eventuallyTick = 10 * time.Millisecond
)

type testEnv struct {
	engine  *engine.Engine
	base    *ledgertest.Ledger
	rollup  *ledgertest.Ledger
	primary *auth.ED25519
}

func newTestEnv(t *testing.T, sessions auth.SessionProvider) *testEnv {
	t.Helper()
	require := require.New(t)

	base, rollup := ledgertest.NewPair()
	t.Cleanup(func() {
		base.Close()
		rollup.Close()
	})

	priv, err := auth.GeneratePrivateKey()
	require.NoError(err)
	primary := auth.NewED25519(priv)

	e, err := engine.New(
		rpc.NewClient("base", base.URL(), base.WSURL(), zap.NewNop()),
		rpc.NewClient("rollup", rollup.URL(), rollup.WSURL(), zap.NewNop()),
		primary,
		sessions,
		zap.NewNop(),
		engine.Options{
			SettlePollInterval: 25 * time.Millisecond,
			SettleTimeout:      3 * time.Second,
		},
	)
	require.NoError(err)
	t.Cleanup(func() { _ = e.Close() })

	return &testEnv{engine: e, base: base, rollup: rollup, primary: primary}
}

func (env *testEnv) start(t *testing.T) {
	t.Helper()
	require.NoError(t, env.engine.Start(context.Background(), env.primary.PublicKey()))
}

func counterData(t *testing.T, count uint64, authority codec.Pubkey) []byte {
	t.Helper()
	data, err := accounts.EncodeCounter(&accounts.Counter{Count: count, Authority: authority})
	require.NoError(t, err)
	return data
}

func (env *testEnv) requireStatus(t *testing.T, want engine.DelegationStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return env.engine.Snapshot().Status == want
	}, eventuallyWait, eventuallyTick, "status never became %s", want)
}

func TestLifecycleBase(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	env.requireStatus(t, engine.StatusUndelegated)

	// Absent before initialization, and not an error.
	counter, err := env.engine.Fetch(ctx)
	require.NoError(err)
	require.Nil(counter)

	require.NoError(env.engine.Initialize(ctx))
	counter, err = env.engine.Fetch(ctx)
	require.NoError(err)
	require.NotNil(counter)
	require.Zero(counter.Count)
	require.Equal(env.primary.PublicKey(), counter.Authority)

	require.NoError(env.engine.Increment(ctx))
	counter, err = env.engine.Fetch(ctx)
	require.NoError(err)
	require.Equal(uint64(1), counter.Count)

	require.NoError(env.engine.Set(ctx, 41))
	require.NoError(env.engine.Increment(ctx))
	counter, err = env.engine.Fetch(ctx)
	require.NoError(err)
	require.Equal(uint64(42), counter.Count)

	// An increment followed by a decrement cancels out.
	require.NoError(env.engine.Increment(ctx))
	require.NoError(env.engine.Decrement(ctx))
	counter, err = env.engine.Fetch(ctx)
	require.NoError(err)
	require.Equal(uint64(42), counter.Count)

	snap := env.engine.Snapshot()
	require.Equal(engine.StatusUndelegated, snap.Status)
	require.Nil(snap.RollupValue)
	require.False(snap.Busy)
	require.Empty(snap.LastErr)
}

func TestDecrementAtZero(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))

	err := env.engine.Decrement(ctx)
	require.ErrorIs(err, rpc.ErrRejected)
	require.Contains(err.Error(), "CounterUnderflow")

	// The value is untouched and the failure is recorded for observers.
	counter, err := env.engine.Fetch(ctx)
	require.NoError(err)
	require.Zero(counter.Count)
	snap := env.engine.Snapshot()
	require.Contains(snap.LastErr, "CounterUnderflow")
	require.False(snap.Busy)

	// The next successful operation clears the error slot.
	require.NoError(env.engine.Increment(ctx))
	require.Empty(env.engine.Snapshot().LastErr)
}

func TestDelegationLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))
	require.NoError(env.engine.Increment(ctx))

	addr := env.engine.Snapshot().Counter

	require.NoError(env.engine.Delegate(ctx, nil))
	env.requireStatus(t, engine.StatusDelegated)
	owner, ok := env.base.Owner(addr)
	require.True(ok)
	require.Equal(consts.DelegationProgram, owner)

	// Rollup updates move the rollup copy, not the base account.
	require.NoError(env.engine.IncrementOnRollup(ctx))
	rollupValue, ok := env.rollup.Value(addr)
	require.True(ok)
	require.Equal(uint64(2), rollupValue)
	baseValue, ok := env.base.Value(addr)
	require.True(ok)
	require.Equal(uint64(1), baseValue)
	require.Eventually(func() bool {
		v := env.engine.Snapshot().RollupValue
		return v != nil && *v == 2
	}, eventuallyWait, eventuallyTick)

	// Commit settles the rollup state to the base ledger and stays
	// delegated.
	require.NoError(env.engine.Commit(ctx))
	require.Eventually(func() bool {
		v, ok := env.base.Value(addr)
		return ok && v == 2
	}, eventuallyWait, eventuallyTick)
	env.requireStatus(t, engine.StatusDelegated)

	require.NoError(env.engine.SetOnRollup(ctx, 7))
	require.NoError(env.engine.Undelegate(ctx))
	env.requireStatus(t, engine.StatusUndelegated)

	// The base ledger holds the final rollup state; the rollup copy and
	// the cached rollup value are gone.
	require.Eventually(func() bool {
		v, ok := env.base.Value(addr)
		return ok && v == 7
	}, eventuallyWait, eventuallyTick)
	_, ok = env.rollup.Value(addr)
	require.False(ok)
	require.Nil(env.engine.Snapshot().RollupValue)

	owner, ok = env.base.Owner(addr)
	require.True(ok)
	require.Equal(consts.CounterProgram, owner)
}

func TestSubscriptionFollowsDelegation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)

	// Base subscription exists from Start; no rollup subscription while
	// undelegated.
	require.Eventually(func() bool {
		return env.base.Subscribers() == 1
	}, eventuallyWait, eventuallyTick)
	env.requireStatus(t, engine.StatusUndelegated)
	require.Zero(env.rollup.Subscribers())

	require.NoError(env.engine.Initialize(ctx))
	require.NoError(env.engine.Delegate(ctx, nil))
	env.requireStatus(t, engine.StatusDelegated)
	require.Eventually(func() bool {
		return env.rollup.Subscribers() == 1
	}, eventuallyWait, eventuallyTick)

	require.NoError(env.engine.Undelegate(ctx))
	env.requireStatus(t, engine.StatusUndelegated)
	require.Eventually(func() bool {
		return env.rollup.Subscribers() == 0
	}, eventuallyWait, eventuallyTick)
}

func TestSubscriptionRecovery(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))
	require.NoError(env.engine.Delegate(ctx, nil))
	env.requireStatus(t, engine.StatusDelegated)
	require.Eventually(func() bool {
		return env.base.Subscribers() == 1 && env.rollup.Subscribers() == 1
	}, eventuallyWait, eventuallyTick)

	// Sever both connections; the engine rebuilds them on its own and
	// the status survives.
	env.base.DropSubscribers()
	env.rollup.DropSubscribers()
	require.Eventually(func() bool {
		return env.base.Subscribers() == 1 && env.rollup.Subscribers() == 1
	}, eventuallyWait, eventuallyTick)
	env.requireStatus(t, engine.StatusDelegated)

	addr := env.engine.Snapshot().Counter

	// The rebuilt rollup stream still carries value updates.
	env.rollup.SetAccount(addr, &ledgertest.Account{
		Owner: consts.CounterProgram,
		Data:  counterData(t, 5, env.primary.PublicKey()),
	})
	require.Eventually(func() bool {
		v := env.engine.Snapshot().RollupValue
		return v != nil && *v == 5
	}, eventuallyWait, eventuallyTick)

	// So does the rebuilt base stream.
	env.base.SetAccount(addr, &ledgertest.Account{
		Owner: consts.DelegationProgram,
		Data:  counterData(t, 9, env.primary.PublicKey()),
	})
	require.Eventually(func() bool {
		snap := env.engine.Snapshot()
		return snap.Account != nil && snap.Account.Count == 9
	}, eventuallyWait, eventuallyTick)
}

func TestRollupCallRequiresDelegation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))
	env.requireStatus(t, engine.StatusUndelegated)

	require.ErrorIs(env.engine.IncrementOnRollup(ctx), engine.ErrNotDelegated)
	require.ErrorIs(env.engine.Commit(ctx), engine.ErrNotDelegated)
	require.ErrorIs(env.engine.Undelegate(ctx), engine.ErrNotDelegated)
}

func TestTransportFailureAssumesUndelegated(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))
	require.NoError(env.engine.Delegate(ctx, nil))
	env.requireStatus(t, engine.StatusDelegated)

	// A failed determination resolves conservatively to undelegated and
	// never surfaces through the observer error slot. An event-driven
	// re-check can race for the injected failure, so retry until our
	// determination is the one that hits it.
	require.Eventually(func() bool {
		env.base.FailNextFetch()
		return env.engine.CheckDelegation(ctx) == engine.StatusUndelegated
	}, eventuallyWait, eventuallyTick)
	require.Empty(env.engine.Snapshot().LastErr)

	// The next determination sees the real ownership again.
	require.Equal(engine.StatusDelegated, env.engine.CheckDelegation(ctx))
}

func TestSessionSignerOnRollup(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	sessionPriv, err := auth.GeneratePrivateKey()
	require.NoError(err)
	sessionSigner := auth.NewED25519(sessionPriv)

	var token codec.Pubkey
	copy(token[:], "session-token-account-for-tests")
	cred := &auth.SessionCredential{
		Token:         token,
		Signer:        sessionSigner,
		TargetProgram: consts.CounterProgram,
		Expiry:        time.Now().Add(time.Hour),
	}
	env := newTestEnv(t, auth.SessionProviderFunc(func() *auth.SessionCredential {
		return cred
	}))
	env.start(t)
	require.NoError(env.engine.Initialize(ctx))
	require.NoError(env.engine.Delegate(ctx, nil))
	env.requireStatus(t, engine.StatusDelegated)

	addr := env.engine.Snapshot().Counter

	// The session credential signs the rollup update. The remote program
	// accepts the foreign signer because the token account is attached.
	require.NoError(env.engine.IncrementOnRollup(ctx))
	value, ok := env.rollup.Value(addr)
	require.True(ok)
	require.Equal(uint64(1), value)

	// Once the credential lapses, the primary signs instead and still
	// passes the authority check.
	cred.Expiry = time.Now().Add(-time.Second)
	require.NoError(env.engine.IncrementOnRollup(ctx))
	value, ok = env.rollup.Value(addr)
	require.True(ok)
	require.Equal(uint64(2), value)
}

func TestBaseEventUpdatesAccount(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)
	env.start(t)
	require.Eventually(func() bool {
		return env.base.Subscribers() == 1
	}, eventuallyWait, eventuallyTick)
	require.NoError(env.engine.Initialize(ctx))

	// An external writer mutates the account; the subscription carries
	// the new value to observers without a fetch.
	addr := env.engine.Snapshot().Counter
	data := counterData(t, 99, env.primary.PublicKey())
	env.base.SetAccount(addr, &ledgertest.Account{Owner: consts.CounterProgram, Data: data})

	require.Eventually(func() bool {
		snap := env.engine.Snapshot()
		return snap.Account != nil && snap.Account.Count == 99
	}, eventuallyWait, eventuallyTick)
}

func TestEngineLifecycleErrors(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, nil)

	_, err := env.engine.Fetch(ctx)
	require.ErrorIs(err, engine.ErrNotReady)
	require.ErrorIs(env.engine.Increment(ctx), engine.ErrNotReady)

	env.start(t)
	require.ErrorIs(
		env.engine.Start(ctx, env.primary.PublicKey()),
		engine.ErrAlreadyStarted,
	)

	require.NoError(env.engine.Close())
	require.NoError(env.engine.Close())
	require.ErrorIs(env.engine.Increment(ctx), engine.ErrClosed)
	_, err = env.engine.Fetch(ctx)
	require.ErrorIs(err, engine.ErrClosed)
}
