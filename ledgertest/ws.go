// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package ledgertest

import (
	"encoding/json"
	"net/http"

	"github.com/ephemlabs/dualcounter/codec"
)

type wsRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (l *Ledger) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var req wsRequest
	if err := conn.ReadJSON(&req); err != nil || req.Method != "accountSubscribe" || len(req.Params) == 0 {
		_ = conn.Close()
		return
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		_ = conn.Close()
		return
	}
	addr, err := codec.ParsePubkey(addrStr)
	if err != nil {
		_ = conn.Close()
		return
	}

	l.mu.Lock()
	l.nextSubID++
	sub := &subscriber{id: l.nextSubID, addr: addr, conn: conn}
	l.mu.Unlock()
	_ = sub.send(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": sub.id})

	l.mu.Lock()
	l.subs = append(l.subs, sub)
	l.mu.Unlock()

	// serve unsubscribes until the client goes away, then unregister
	for {
		var next wsRequest
		if err := conn.ReadJSON(&next); err != nil {
			break
		}
		if next.Method == "accountUnsubscribe" && len(next.Params) > 0 {
			var id uint64
			if err := json.Unmarshal(next.Params[0], &id); err == nil {
				l.mu.Lock()
				l.lastUnsub = id
				l.mu.Unlock()
			}
			_ = sub.send(map[string]interface{}{"jsonrpc": "2.0", "id": next.ID, "result": true})
		}
	}
	l.mu.Lock()
	for i, s := range l.subs {
		if s == sub {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	_ = conn.Close()
}

func (s *subscriber) send(v interface{}) error {
	s.wl.Lock()
	defer s.wl.Unlock()
	return s.conn.WriteJSON(v)
}

// notify pushes the current state of addr to every matching subscriber.
func (l *Ledger) notify(addr codec.Pubkey) {
	l.mu.Lock()
	acct := l.accts[addr]
	slot := l.slot
	var targets []*subscriber
	for _, s := range l.subs {
		if s.addr == addr {
			targets = append(targets, s)
		}
	}
	l.mu.Unlock()

	for _, s := range targets {
		_ = s.send(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "accountNotification",
			"params": map[string]interface{}{
				"subscription": s.id,
				"result": map[string]interface{}{
					"context": map[string]uint64{"slot": slot},
					"value":   accountValue(acct),
				},
			},
		})
	}
}
