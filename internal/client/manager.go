// Package client keeps one authenticated chat connection alive for an
// application: it walks a list of candidate endpoints, reconnects with
// backoff after drops, checks transport health and fans inbound events out
// to subscribers.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultFallbackDelay  = time.Second
	DefaultHealthInterval = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
)

// Config tunes a Manager. Zero durations take the defaults.
type Config struct {
	BaseURL        string
	FallbackDelay  time.Duration
	HealthInterval time.Duration
	DialTimeout    time.Duration
}

// NewReconnectBackOff returns the randomized exponential policy used after
// a drop: 1s doubling up to 5s, each delay jittered by half.
func NewReconnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Second
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.Reset()
	return b
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for fallback, retry and health
// timers.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithBackOff replaces the reconnect policy.
func WithBackOff(b backoff.BackOff) Option {
	return func(m *Manager) { m.backoff = b }
}

// Manager owns the connection lifecycle. Timer and transport callbacks run
// on one scheduler goroutine; so do all subscriber callbacks. The public
// methods are safe to call from any goroutine, including from handlers.
type Manager struct {
	cfg        Config
	candidates []string
	dialer     Dialer
	clock      Clock
	subs       *Subscribers
	sched      *scheduler
	log        *slog.Logger

	mu         sync.Mutex
	state      State
	cred       Credential
	gen        uint64
	candidate  int
	attempt    int
	endpoint   string
	link       *link
	transport  Transport
	retry      Timer
	health     Timer
	cancelDial context.CancelFunc
	backoff    backoff.BackOff
}

// NewManager validates cfg.BaseURL into endpoint candidates. The manager
// stays idle until Connect.
func NewManager(cfg Config, dialer Dialer, log *slog.Logger, opts ...Option) (*Manager, error) {
	candidates, err := BuildCandidates(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	m := &Manager{
		cfg:        cfg,
		candidates: candidates,
		dialer:     dialer,
		clock:      realClock{},
		subs:       NewSubscribers(log),
		log:        log,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.backoff == nil {
		m.backoff = NewReconnectBackOff()
	}
	m.subs.now = m.clock.Now
	m.sched = newScheduler()
	return m, nil
}

// Candidates returns the endpoints tried on each fresh connection pass.
func (m *Manager) Candidates() []string {
	return append([]string(nil), m.candidates...)
}

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:     m.state,
		Candidate: m.candidate,
		Attempt:   m.attempt,
		Endpoint:  m.endpoint,
	}
	if m.transport != nil {
		st.Session = m.transport.Session()
	}
	return st
}

// Connect starts a connection pass with cred. It is a no-op while a pass
// with the same credential is in flight or connected; a different
// credential tears the current connection down first.
func (m *Manager) Connect(cred Credential) {
	m.mu.Lock()
	if m.state != StateDisconnected && cred == m.cred {
		state := m.state
		m.mu.Unlock()
		m.log.Debug("Already connecting or connected", "state", state)
		return
	}
	stale := m.teardownLocked()
	m.cred = cred
	m.beginPassLocked()
	m.mu.Unlock()

	m.release(stale, "credential changed")
}

// Disconnect stops every timer and dial and closes the transport.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	stale := m.teardownLocked()
	m.mu.Unlock()

	m.release(stale, "client disconnect")
}

// Close disconnects and stops the scheduler. It must not be called from a
// subscriber callback.
func (m *Manager) Close() {
	m.Disconnect()
	m.sched.stop()
}

// Subscribe registers h under id and returns the id in use.
func (m *Manager) Subscribe(id string, h Handlers) string {
	return m.subs.Subscribe(id, h)
}

// Unsubscribe removes the handlers registered under id.
func (m *Manager) Unsubscribe(id string) {
	m.subs.Unsubscribe(id)
}

// JoinRoom asks the gateway to add this session to room. Membership does
// not survive a reconnect; call it again from an OnConnect handler.
func (m *Manager) JoinRoom(room chat.RoomID) {
	m.send(chat.JoinRoom{RoomID: room})
}

func (m *Manager) LeaveRoom(room chat.RoomID) {
	m.send(chat.LeaveRoom{RoomID: room})
}

// SendMessage sends text to receiver through their conversation room.
func (m *Manager) SendMessage(receiver chat.Identity, text string) {
	m.send(chat.SendMessage{ReceiverID: receiver, Message: text})
}

func (m *Manager) MarkRead(peer chat.Identity) {
	m.send(chat.MarkRead{PeerID: peer})
}

// Emit sends an arbitrary named event. Like the typed helpers it is a
// no-op with a warning when not connected.
func (m *Manager) Emit(name string, payload any) {
	data, err := chat.EncodeRaw(name, payload)
	if err != nil {
		m.log.Warn("Failed to encode event", "event", name, "error", err)
		return
	}
	m.write(name, data)
}

func (m *Manager) send(evt chat.Event) {
	data, err := chat.Encode(evt)
	if err != nil {
		m.log.Warn("Failed to encode event", "event", evt.Kind(), "error", err)
		return
	}
	m.write(evt.Kind().String(), data)
}

func (m *Manager) write(name string, data []byte) {
	m.mu.Lock()
	t, state := m.transport, m.state
	m.mu.Unlock()

	if state != StateConnected || t == nil {
		m.log.Warn("Not connected; dropping outbound event", "event", name, "state", state)
		return
	}
	if err := t.Send(data); err != nil {
		m.log.Warn("Send failed", "event", name, "error", err)
	}
}

// teardownLocked invalidates every pending callback and returns the
// transport the caller must close once the lock is released.
func (m *Manager) teardownLocked() Transport {
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.health != nil {
		m.health.Stop()
		m.health = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	t := m.transport
	m.transport = nil
	m.link = nil
	m.state = StateDisconnected
	m.candidate = 0
	m.attempt = 0
	return t
}

func (m *Manager) release(t Transport, reason string) {
	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		m.log.Debug("Transport close failed", "error", err)
	}
	m.sched.post(func() { m.subs.Disconnected(reason) })
}

func (m *Manager) beginPassLocked() {
	m.gen++
	m.state = StateConnecting
	m.candidate = 0
	m.attempt = 0
	m.dialLocked(m.candidates[0])
}

func (m *Manager) dialLocked(endpoint string) {
	gen := m.gen
	cred := m.cred
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	m.cancelDial = cancel
	l := &link{m: m, ready: make(chan struct{})}

	m.log.Debug("Dialing", "endpoint", endpoint, "state", m.state)
	go func() {
		t, err := m.dialer.Dial(ctx, endpoint, cred, l)
		posted := m.sched.post(func() { m.dialed(gen, endpoint, l, t, err) })
		if !posted && t != nil {
			_ = t.Close()
		}
	}()
}

// dialed handles the outcome of one dial on the scheduler goroutine.
func (m *Manager) dialed(gen uint64, endpoint string, l *link, t Transport, err error) {
	defer close(l.ready)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	if err == nil {
		m.transport = t
		m.link = l
		m.endpoint = endpoint
		m.state = StateConnected
		m.attempt = 0
		m.backoff.Reset()
		m.scheduleHealthLocked()
		m.mu.Unlock()

		m.log.Info("Connected", "endpoint", endpoint, "session", t.Session().SessionID)
		m.subs.Connected()
		return
	}

	if errors.Is(err, chat.ErrAuthentication) {
		m.gen++
		m.state = StateDisconnected
		m.mu.Unlock()

		m.log.Error("Authentication rejected", "endpoint", endpoint, "error", err)
		m.subs.Failed(err)
		return
	}

	if m.state == StateReconnecting {
		m.scheduleReconnectLocked()
		attempt := m.attempt
		m.mu.Unlock()
		m.log.Warn("Reconnect failed", "endpoint", endpoint, "attempt", attempt, "error", err)
		return
	}

	if next := m.candidate + 1; next < len(m.candidates) {
		m.candidate = next
		m.scheduleLocked(m.cfg.FallbackDelay, func() { m.dialLocked(m.candidates[next]) })
		m.mu.Unlock()
		m.log.Warn("Endpoint failed; trying next", "endpoint", endpoint, "next", m.candidates[next], "error", err)
		return
	}

	m.gen++
	m.state = StateDisconnected
	tried := len(m.candidates)
	m.mu.Unlock()

	m.log.Error("All endpoints failed", "tried", tried, "error", err)
	m.subs.Failed(fmt.Errorf("%w: %d endpoints tried, last error: %v", chat.ErrCandidatesExhausted, tried, err))
}

// scheduleLocked runs fn under the lock after d unless the generation
// moved on in the meantime.
func (m *Manager) scheduleLocked(d time.Duration, fn func()) {
	gen := m.gen
	m.retry = m.clock.AfterFunc(d, func() {
		m.sched.post(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if gen != m.gen {
				return
			}
			m.retry = nil
			fn()
		})
	})
}

func (m *Manager) scheduleReconnectLocked() {
	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		m.backoff.Reset()
		delay = m.backoff.NextBackOff()
	}
	m.attempt++
	endpoint := m.endpoint
	m.log.Info("Reconnecting", "endpoint", endpoint, "attempt", m.attempt, "delay", delay)
	m.scheduleLocked(delay, func() { m.dialLocked(endpoint) })
}

func (m *Manager) scheduleHealthLocked() {
	gen := m.gen
	m.health = m.clock.AfterFunc(m.cfg.HealthInterval, func() {
		m.sched.post(func() { m.checkHealth(gen) })
	})
}

func (m *Manager) checkHealth(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	if m.transport.Alive() {
		m.scheduleHealthLocked()
		m.mu.Unlock()
		return
	}

	stale := m.transport
	m.transport = nil
	m.link = nil
	m.health = nil
	m.beginPassLocked()
	m.mu.Unlock()

	m.log.Warn("Transport found dead; starting a fresh pass")
	_ = stale.Close()
	m.subs.Disconnected("health check")
}

func (m *Manager) received(l *link, evt chat.Event) {
	m.mu.Lock()
	active := l == m.link
	m.mu.Unlock()
	if !active {
		return
	}

	switch evt.Kind() {
	case chat.KindSessionReady, chat.KindAuthError:
		m.log.Debug("Ignoring handshake event on an established connection", "event", evt.Kind())
		return
	}
	m.subs.Dispatch(evt)
}

func (m *Manager) closed(l *link, err error) {
	m.mu.Lock()
	if l != m.link {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.link = nil
	m.transport = nil
	if m.health != nil {
		m.health.Stop()
		m.health = nil
	}
	m.state = StateReconnecting
	m.attempt = 0
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	reason := "transport closed"
	if err != nil {
		reason = fmt.Sprintf("transport closed: %v", err)
	}
	m.log.Warn("Connection lost", "reason", reason)
	m.subs.Disconnected(reason)
}

// link is the Receiver handed to one dial. Its callbacks wait until the
// dial outcome was processed so a fast first frame is not mistaken for a
// stale one.
type link struct {
	m     *Manager
	ready chan struct{}
}

func (l *link) Received(evt chat.Event) {
	if l.wait() {
		l.m.sched.post(func() { l.m.received(l, evt) })
	}
}

func (l *link) Closed(err error) {
	if l.wait() {
		l.m.sched.post(func() { l.m.closed(l, err) })
	}
}

func (l *link) wait() bool {
	select {
	case <-l.ready:
		return true
	case <-l.m.sched.done:
		return false
	}
}
