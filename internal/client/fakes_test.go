package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/mama165/sdk-go/logs"
)

func quietLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

// fakeClock fires timers only when advanced. With leaky set, Stop reports
// success but the callback still fires, like a timer that had already
// expired when it was stopped.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	leaky  bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Pending counts timers that would still fire.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && (!t.stopped || c.leaky) {
			n++
		}
	}
	return n
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.fired || (t.stopped && !c.leaky) || t.at.After(c.now) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fakeDialer succeeds unless fail says otherwise for the attempt.
type fakeDialer struct {
	mu         sync.Mutex
	attempts   []string
	tokens     []string
	transports []*fakeTransport
	fail       func(endpoint string, attempt int) error
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string, cred Credential, rcv Receiver) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, endpoint)
	d.tokens = append(d.tokens, cred.Token)
	if d.fail != nil {
		if err := d.fail(endpoint, len(d.attempts)); err != nil {
			return nil, err
		}
	}
	t := &fakeTransport{rcv: rcv, alive: true}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) setFail(fail func(endpoint string, attempt int) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) Attempts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.attempts...)
}

func (d *fakeDialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tokens...)
}

func (d *fakeDialer) Transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

func (d *fakeDialer) TransportCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func transportErr(endpoint string) error {
	return fmt.Errorf("%w: dial %s: connection refused", chat.ErrTransport, endpoint)
}

type fakeTransport struct {
	rcv Receiver

	mu     sync.Mutex
	alive  bool
	closed bool
	sent   [][]byte
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.alive {
		return chat.ErrTransport
	}
	t.sent = append(t.sent, data)
	return nil
}

func (t *fakeTransport) Session() chat.SessionReady {
	return chat.SessionReady{SessionID: "session-1", UserID: "alice"}
}

func (t *fakeTransport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
	t.closed = true
	return nil
}

func (t *fakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) Sent() []chat.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]chat.Event, 0, len(t.sent))
	for _, data := range t.sent {
		if evt, err := chat.Decode(data); err == nil {
			out = append(out, evt)
		}
	}
	return out
}

func (t *fakeTransport) RawSent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

// silence marks the transport dead without telling the receiver.
func (t *fakeTransport) silence() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alive = false
}

func (t *fakeTransport) drop(err error) {
	t.silence()
	t.rcv.Closed(err)
}

func (t *fakeTransport) push(evt chat.Event) {
	t.rcv.Received(evt)
}

// recorder captures every callback a subscriber receives.
type recorder struct {
	mu          sync.Mutex
	connects    int
	disconnects []string
	errs        []error
	messages    []chat.NewMessage
	statuses    []chat.UserStatusUpdate
	reads       []chat.MessagesRead
	joined      []chat.RoomID
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnConnect: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connects++
		},
		OnDisconnect: func(reason string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnects = append(r.disconnects, reason)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		OnNewMessage: func(msg chat.NewMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		OnStatusUpdate: func(u chat.UserStatusUpdate) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, u)
		},
		OnMessagesRead: func(m chat.MessagesRead) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.reads = append(r.reads, m)
		},
		OnRoomJoined: func(room chat.RoomID) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.joined = append(r.joined, room)
		},
	}
}

func (r *recorder) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

func (r *recorder) Disconnects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.disconnects...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) Messages() []chat.NewMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.NewMessage(nil), r.messages...)
}

func (r *recorder) Statuses() []chat.UserStatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.UserStatusUpdate(nil), r.statuses...)
}
