// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledgertest runs an in-process ledger that speaks the subset of
// the RPC and websocket surface the engine uses, executing counter
// program semantics against an in-memory account map. Base and rollup
// instances are linked so delegation, commit, and undelegation replicate
// state between them the way a real rollup operator would.
package ledgertest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/codec"
)

// Account is one stored account: owning program plus raw data bytes.
type Account struct {
	Owner codec.Pubkey
	Data  []byte
}

// Ledger is a single fake ledger instance.
type Ledger struct {
	name string

	mu        sync.Mutex
	accts     map[codec.Pubkey]*Account
	slot      uint64
	statuses  map[string]bool // signature -> confirmed
	subs      []*subscriber
	nextSubID uint64
	lastUnsub uint64
	failFetch bool

	counterpart *Ledger
	server      *httptest.Server
	upgrader    websocket.Upgrader
}

type subscriber struct {
	id   uint64
	addr codec.Pubkey
	conn *websocket.Conn
	wl   sync.Mutex
}

// NewPair returns a linked (base, rollup) pair. Close both when done.
func NewPair() (*Ledger, *Ledger) {
	base := newLedger("base")
	rollup := newLedger("rollup")
	base.counterpart = rollup
	rollup.counterpart = base
	return base, rollup
}

func newLedger(name string) *Ledger {
	l := &Ledger{
		name:     name,
		accts:    map[codec.Pubkey]*Account{},
		statuses: map[string]bool{},
	}
	l.server = httptest.NewServer(http.HandlerFunc(l.handle))
	return l
}

func (l *Ledger) URL() string {
	return l.server.URL
}

func (l *Ledger) WSURL() string {
	return "ws" + strings.TrimPrefix(l.server.URL, "http")
}

func (l *Ledger) Close() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()
	for _, s := range subs {
		_ = s.conn.Close()
	}
	l.server.Close()
}

// SetAccount stores an account directly and notifies subscribers, as if
// a transaction this fake does not model had mutated it.
func (l *Ledger) SetAccount(addr codec.Pubkey, acct *Account) {
	l.mu.Lock()
	l.slot++
	if acct == nil {
		delete(l.accts, addr)
	} else {
		l.accts[addr] = &Account{Owner: acct.Owner, Data: append([]byte{}, acct.Data...)}
	}
	l.mu.Unlock()
	l.notify(addr)
}

// Value returns the counter value stored at addr, if decodable.
func (l *Ledger) Value(addr codec.Pubkey) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accts[addr]
	if !ok {
		return 0, false
	}
	counter, err := accounts.DecodeCounter(acct.Data)
	if err != nil {
		return 0, false
	}
	return counter.Count, true
}

// Owner returns the owning program recorded for addr.
func (l *Ledger) Owner(addr codec.Pubkey) (codec.Pubkey, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accts[addr]
	if !ok {
		return codec.EmptyPubkey, false
	}
	return acct.Owner, true
}

// Subscribers returns how many websocket subscriptions are currently
// registered.
func (l *Ledger) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// DropSubscribers severs every websocket connection while keeping the
// server up, as if the subscriptions were lost mid-flight.
func (l *Ledger) DropSubscribers() {
	l.mu.Lock()
	subs := append([]*subscriber{}, l.subs...)
	l.mu.Unlock()
	for _, s := range subs {
		_ = s.conn.Close()
	}
}

// LastUnsubscribeID returns the subscription id named by the most recent
// accountUnsubscribe request.
func (l *Ledger) LastUnsubscribeID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUnsub
}

// FailNextFetch makes the next getAccountInfo call fail at the transport
// level.
func (l *Ledger) FailNextFetch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failFetch = true
}

func (l *Ledger) handle(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		l.handleWS(w, r)
		return
	}
	l.handleRPC(w, r)
}
