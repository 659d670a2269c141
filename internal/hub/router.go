package hub

import (
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/samber/lo"
)

// Router manages conversation-scoped membership on top of a Registry.
// Membership is explicit: a session receives a room's events only after it
// joined that room, whatever conversations its identity takes part in.
type Router struct {
	reg *Registry
}

// NewRouter creates a router sharing reg's state and lock.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Join adds the session to room. Joining twice is a no-op.
func (rt *Router) Join(id SessionID, room chat.RoomID) error {
	r := rt.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	if _, joined := s.rooms[room]; joined {
		return nil
	}
	s.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[SessionID]*Session)
		r.rooms[room] = members
	}
	members[id] = s
	r.log.Debug("Session joined room", "session", id, "room", room, "members", len(members))
	return nil
}

// Leave removes the session from room. Absent sessions or memberships are
// ignored.
func (rt *Router) Leave(id SessionID, room chat.RoomID) {
	r := rt.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		delete(s.rooms, room)
	}
	r.removeMemberLocked(room, id)
	r.log.Debug("Session left room", "session", id, "room", room)
}

// Broadcast hands evt to every session joined to room and returns how many
// accepted it. Delivery happens under the registry lock so every member
// observes broadcasts to one room in the same order; sinks never block, so
// a slow member cannot hold the others back.
func (rt *Router) Broadcast(room chat.RoomID, evt chat.Event) int {
	r := rt.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for id, s := range r.rooms[room] {
		if s.sink.Deliver(evt) {
			delivered++
			continue
		}
		r.log.Warn("Dropped room event for slow session", "session", id, "room", room, "event", evt.Kind())
	}
	return delivered
}

// Members lists the sessions currently joined to room.
func (rt *Router) Members(room chat.RoomID) []SessionID {
	r := rt.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Keys(r.rooms[room])
}

// JoinedRooms lists the rooms a session joined.
func (rt *Router) JoinedRooms(id SessionID) []chat.RoomID {
	r := rt.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	return lo.Keys(s.rooms)
}
