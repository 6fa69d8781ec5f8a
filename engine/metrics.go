// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	baseTxsSubmitted   prometheus.Counter
	rollupTxsSubmitted prometheus.Counter
	statusChecks       prometheus.Counter
	baseEvents         prometheus.Counter
	rollupEvents       prometheus.Counter
	opFailures         prometheus.Counter
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		baseTxsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "base_txs_submitted",
			Help:      "number of transactions submitted to the base ledger",
		}),
		rollupTxsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "rollup_txs_submitted",
			Help:      "number of transactions submitted to the rollup ledger",
		}),
		statusChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "status_checks",
			Help:      "number of delegation status determinations",
		}),
		baseEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "base_events",
			Help:      "number of base-ledger account change events",
		}),
		rollupEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "rollup_events",
			Help:      "number of rollup-ledger account change events",
		}),
		opFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "op_failures",
			Help:      "number of operations that recorded an error",
		}),
	}
	if r == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.baseTxsSubmitted,
		m.rollupTxsSubmitted,
		m.statusChecks,
		m.baseEvents,
		m.rollupEvents,
		m.opFailures,
	} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
