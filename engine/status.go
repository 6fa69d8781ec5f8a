// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

// DelegationStatus tracks which ledger currently holds authority over
// the counter account.
type DelegationStatus uint8

const (
	// StatusChecking is the initial state and the state re-entered
	// whenever a fresh determination is in flight.
	StatusChecking DelegationStatus = iota

	// StatusUndelegated means the base ledger holds sole authority.
	StatusUndelegated

	// StatusDelegated means the account is owned by the delegation
	// program and the rollup may execute updates on it.
	StatusDelegated
)

func (s DelegationStatus) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusUndelegated:
		return "undelegated"
	case StatusDelegated:
		return "delegated"
	default:
		return "unknown"
	}
}
