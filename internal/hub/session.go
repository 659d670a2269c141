// Package hub owns the live server-side state: which sessions each
// identity holds and which rooms each session joined. Registry and Router
// share one mutex, which is the only mutation path for that state.
package hub

import (
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

var (
	ErrUnknownSession = fmt.Errorf("unknown session")
	ErrEmptyIdentity  = fmt.Errorf("empty identity")
	ErrNilSink        = fmt.Errorf("nil session sink")
	ErrRegistryClosed = fmt.Errorf("session registry closed")
)

// SessionID identifies one live transport connection.
type SessionID string

// Sink is the outbound side of a session's transport. Deliver must not
// block and must not call back into the Registry or Router: it runs inside
// their critical section.
type Sink interface {
	Deliver(evt chat.Event) bool
}

// Session is one live connection of an identity. The exported fields never
// change after registration; room membership is only reachable through the
// Router.
type Session struct {
	ID          SessionID
	Identity    chat.Identity
	ConnectedAt time.Time

	sink  Sink
	rooms map[chat.RoomID]struct{}
}

// Sink returns the session's transport handle. The registry never closes it.
func (s *Session) Sink() Sink {
	return s.sink
}

// PresenceChange is an online/offline transition of an identity.
type PresenceChange struct {
	Identity chat.Identity
	Online   bool
	At       time.Time
}

// PresenceObserver learns about 0->1 and 1->0 session count transitions.
// PresenceChanged is invoked inside the registry's critical section with
// the sessions of every other identity as audience, so it must not call
// back into the Registry.
type PresenceObserver interface {
	PresenceChanged(change PresenceChange, audience []*Session)
}
