package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the authoritative identity -> live sessions map. It is
// constructed once at process start and handed to the gateway.
type Registry struct {
	mu         sync.Mutex
	sessions   map[SessionID]*Session
	byIdentity map[chat.Identity][]*Session
	rooms      map[chat.RoomID]map[SessionID]*Session
	observer   PresenceObserver
	closed     bool

	now func() time.Time
	log *slog.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for ConnectedAt and presence
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions:   make(map[SessionID]*Session),
		byIdentity: make(map[chat.Identity][]*Session),
		rooms:      make(map[chat.RoomID]map[SessionID]*Session),
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPresenceObserver installs the observer notified on presence
// transitions. Passing nil disables notifications.
func (r *Registry) SetPresenceObserver(o PresenceObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Register adds a session for identity. When it is the identity's first
// live session the online transition is announced before Register returns.
func (r *Registry) Register(identity chat.Identity, sink Sink) (SessionID, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}
	if sink == nil {
		return "", ErrNilSink
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRegistryClosed
	}

	s := &Session{
		ID:          SessionID(uuid.NewString()),
		Identity:    identity,
		ConnectedAt: r.now(),
		sink:        sink,
		rooms:       make(map[chat.RoomID]struct{}),
	}
	r.sessions[s.ID] = s
	r.byIdentity[identity] = append(r.byIdentity[identity], s)

	count := len(r.byIdentity[identity])
	r.log.Debug("Session registered", "user", identity, "session", s.ID, "sessions", count)
	if count == 1 {
		r.notifyLocked(identity, true)
	}
	return s.ID, nil
}

// Unregister removes a session and purges it from every room it joined.
// Unknown or already removed sessions are ignored. Removing the identity's
// last session announces the offline transition.
func (r *Registry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	for room := range s.rooms {
		r.removeMemberLocked(room, id)
	}
	s.rooms = nil

	remaining := lo.Reject(r.byIdentity[s.Identity], func(other *Session, _ int) bool {
		return other.ID == id
	})
	if len(remaining) > 0 {
		r.byIdentity[s.Identity] = remaining
		r.log.Debug("Session unregistered", "user", s.Identity, "session", id, "sessions", len(remaining))
		return
	}

	delete(r.byIdentity, s.Identity)
	r.log.Debug("Identity fully disconnected", "user", s.Identity, "session", id)
	r.notifyLocked(s.Identity, false)
}

// SessionsFor returns the live sessions of identity in connection order.
func (r *Registry) SessionsFor(identity chat.Identity) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*Session(nil), r.byIdentity[identity]...)
}

// Session looks a live session up by id.
func (r *Registry) Session(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// IsOnline reports whether identity holds at least one live session.
func (r *Registry) IsOnline(identity chat.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byIdentity[identity]) > 0
}

// Identities lists every identity that currently holds a session.
func (r *Registry) Identities() []chat.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Keys(r.byIdentity)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close makes every later Register fail. Existing sessions stay until their
// transports unregister them.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
}

func (r *Registry) notifyLocked(identity chat.Identity, online bool) {
	if r.observer == nil {
		return
	}
	var audience []*Session
	for other, sessions := range r.byIdentity {
		if other == identity {
			continue
		}
		audience = append(audience, sessions...)
	}
	r.observer.PresenceChanged(PresenceChange{Identity: identity, Online: online, At: r.now()}, audience)
}

func (r *Registry) removeMemberLocked(room chat.RoomID, id SessionID) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
