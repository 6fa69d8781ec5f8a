// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/codec"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// AccountEvent is one account-change notification. Info is nil when the
// account no longer exists at the notifying slot. A terminal event
// carries Err (connection loss is reported, never silently dropped).
type AccountEvent struct {
	Info *AccountInfo
	Err  error
}

// Subscription is an ephemeral handle bound to (ledger, address). Owned
// exclusively by the subscription manager; events stop only on explicit
// Close or connection loss.
type Subscription struct {
	addr  codec.Pubkey
	conn  *websocket.Conn
	log   *zap.Logger
	subID uint64

	events chan AccountEvent
	closed chan struct{}
	wl     sync.Mutex
	cl     sync.Once
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result accountInfoReply `json:"result"`
	} `json:"params"`
}

// Subscribe opens a live account-change stream for [addr] over the
// ledger's websocket endpoint.
func (c *Client) Subscribe(ctx context.Context, addr codec.Pubkey) (*Subscription, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsURI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %s", ErrSubmission, c.name, err)
	}
	resp.Body.Close()

	sub := &Subscription{
		addr:   addr,
		conn:   conn,
		log:    c.log,
		events: make(chan AccountEvent, 16),
		closed: make(chan struct{}),
	}
	if err := sub.write(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "accountSubscribe",
		"params": []interface{}{
			addr.String(),
			map[string]interface{}{"encoding": "base64", "commitment": CommitmentConfirmed},
		},
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing on %s: %s", ErrSubmission, c.name, err)
	}

	// The endpoint replies with the server-assigned subscription id
	// before any notification; the later unsubscribe must name it.
	if err := conn.SetReadDeadline(time.Now().Add(wsWriteWait)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing on %s: %s", ErrSubmission, c.name, err)
	}
	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing on %s: %s", ErrSubmission, c.name, err)
	}
	if reply.Error != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing on %s: %s", ErrSubmission, c.name, reply.Error)
	}
	if err := json.Unmarshal(reply.Result, &sub.subID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscription id: %s", ErrBadAccountData, err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: subscribing on %s: %s", ErrSubmission, c.name, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go sub.readPump(c.name)
	return sub, nil
}

// Events returns the notification stream. The channel is closed after a
// terminal event.
func (s *Subscription) Events() <-chan AccountEvent {
	return s.events
}

func (s *Subscription) write(v interface{}) error {
	s.wl.Lock()
	defer s.wl.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// readPump pumps notifications from the websocket connection into the
// event channel. Runs in a per-subscription goroutine; all reads happen
// here so there is at most one reader per connection.
func (s *Subscription) readPump(ledger string) {
	defer close(s.events)
	for {
		var note wsNotification
		if err := s.conn.ReadJSON(&note); err != nil {
			select {
			case <-s.closed:
				// torn down on purpose, not an error
			default:
				s.log.Debug("subscription terminated",
					zap.String("ledger", ledger),
					zap.Stringer("account", s.addr),
					zap.Error(err),
				)
				s.events <- AccountEvent{Err: fmt.Errorf("%w: %s", ErrSubscriptionEnd, err)}
			}
			return
		}
		if note.Method != "accountNotification" {
			continue
		}
		s.events <- accountEventFromReply(&note.Params.Result)
	}
}

func accountEventFromReply(reply *accountInfoReply) AccountEvent {
	if reply.Value == nil {
		return AccountEvent{}
	}
	owner, err := codec.ParsePubkey(reply.Value.Owner)
	if err != nil {
		return AccountEvent{Err: fmt.Errorf("%w: owner: %s", ErrBadAccountData, err)}
	}
	if len(reply.Value.Data) < 2 || reply.Value.Data[1] != "base64" {
		return AccountEvent{Err: fmt.Errorf("%w: want base64", ErrBadAccountData)}
	}
	data, err := base64.StdEncoding.DecodeString(reply.Value.Data[0])
	if err != nil {
		return AccountEvent{Err: fmt.Errorf("%w: %s", ErrBadAccountData, err)}
	}
	return AccountEvent{Info: &AccountInfo{Owner: owner, Data: data, Slot: reply.Context.Slot}}
}

// Close cancels the subscription. Idempotent, nil-safe, and safe to call
// on a subscription whose connection already dropped.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	s.cl.Do(func() {
		close(s.closed)
		// best-effort; the server drops state when the connection closes
		_ = s.write(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      2,
			"method":  "accountUnsubscribe",
			"params":  []interface{}{s.subID},
		})
		_ = s.conn.Close()
	})
	return nil
}
