package client

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Handlers are the callbacks of one subscriber. Nil fields are skipped;
// a subscriber with OnNewMessage set is message-capable.
type Handlers struct {
	OnConnect      func()
	OnDisconnect   func(reason string)
	OnError        func(err error)
	OnNewMessage   func(chat.NewMessage)
	OnStatusUpdate func(chat.UserStatusUpdate)
	OnMessagesRead func(chat.MessagesRead)
	OnRoomJoined   func(chat.RoomID)
	OnRoomLeft     func(chat.RoomID)
}

// handles reports whether h has a callback for events of kind k.
func (h Handlers) handles(k chat.Kind) bool {
	switch k {
	case chat.KindNewMessage:
		return h.OnNewMessage != nil
	case chat.KindUserStatusUpdate:
		return h.OnStatusUpdate != nil
	case chat.KindMessagesRead:
		return h.OnMessagesRead != nil
	case chat.KindRoomJoined:
		return h.OnRoomJoined != nil
	case chat.KindRoomLeft:
		return h.OnRoomLeft != nil
	default:
		return false
	}
}

func (h Handlers) deliver(evt chat.Event) {
	switch e := evt.(type) {
	case chat.NewMessage:
		h.OnNewMessage(e)
	case chat.UserStatusUpdate:
		h.OnStatusUpdate(e)
	case chat.MessagesRead:
		h.OnMessagesRead(e)
	case chat.RoomJoined:
		h.OnRoomJoined(e.RoomID)
	case chat.RoomLeft:
		h.OnRoomLeft(e.RoomID)
	}
}

// BufferedEvent is a message kept until a consumer subscribes.
type BufferedEvent struct {
	Kind       chat.Kind
	Event      chat.Event
	ReceivedAt time.Time
}

type subscription struct {
	id       string
	handlers Handlers
}

// Subscribers fans connection signals and inbound events out to registered
// handlers. Messages that arrive while nobody can consume them are kept
// and handed, in arrival order, to the next message-capable subscriber.
type Subscribers struct {
	mu       sync.Mutex
	subs     []subscription
	buffer   []BufferedEvent
	draining bool
	pending  []chat.Event
	now      func() time.Time
	log      *slog.Logger
}

// NewSubscribers returns an empty subscriber set.
func NewSubscribers(log *slog.Logger) *Subscribers {
	return &Subscribers{now: time.Now, log: log}
}

// Subscribe registers handlers under id, replacing any registration with
// the same id, and returns the id. An empty id gets a generated one.
func (s *Subscribers) Subscribe(id string, h Handlers) string {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	replaced := false
	for i := range s.subs {
		if s.subs[i].id == id {
			s.subs[i].handlers = h
			replaced = true
			break
		}
	}
	if !replaced {
		s.subs = append(s.subs, subscription{id: id, handlers: h})
	}

	var drained []BufferedEvent
	if h.OnNewMessage != nil && len(s.buffer) > 0 && !s.draining {
		drained = s.buffer
		s.buffer = nil
		s.draining = true
	}
	s.mu.Unlock()

	if drained == nil {
		return id
	}
	s.log.Debug("Draining buffered messages", "subscriber", id, "count", len(drained))
	for _, b := range drained {
		h.deliver(b.Event)
	}
	s.flushPending()
	return id
}

// flushPending delivers what was dispatched during a drain, then ends it.
func (s *Subscribers) flushPending() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, evt := range next {
			s.route(evt)
		}
	}
}

// Unsubscribe removes the registration. Unknown ids are ignored.
func (s *Subscribers) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if s.subs[i].id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registrations.
func (s *Subscribers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Buffered returns the number of messages waiting for a consumer.
func (s *Subscribers) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Oldest returns the first buffered message, if any.
func (s *Subscribers) Oldest() (BufferedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) == 0 {
		return BufferedEvent{}, false
	}
	return s.buffer[0], true
}

// Dispatch hands evt to every subscriber that handles its kind.
func (s *Subscribers) Dispatch(evt chat.Event) {
	s.mu.Lock()
	if s.draining {
		s.pending = append(s.pending, evt)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.route(evt)
}

func (s *Subscribers) route(evt chat.Event) {
	kind := evt.Kind()

	s.mu.Lock()
	var targets []Handlers
	for _, sub := range s.subs {
		if sub.handlers.handles(kind) {
			targets = append(targets, sub.handlers)
		}
	}
	if len(targets) == 0 {
		if kind.Buffered() {
			s.buffer = append(s.buffer, BufferedEvent{Kind: kind, Event: evt, ReceivedAt: s.now()})
			s.log.Debug("No message consumer; buffering", "event", kind, "buffered", len(s.buffer))
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	for _, h := range targets {
		h.deliver(evt)
	}
}

// Connected fans out OnConnect.
func (s *Subscribers) Connected() {
	for _, h := range s.snapshot() {
		if h.OnConnect != nil {
			h.OnConnect()
		}
	}
}

// Disconnected fans out OnDisconnect.
func (s *Subscribers) Disconnected(reason string) {
	for _, h := range s.snapshot() {
		if h.OnDisconnect != nil {
			h.OnDisconnect(reason)
		}
	}
}

// Failed fans out OnError.
func (s *Subscribers) Failed(err error) {
	for _, h := range s.snapshot() {
		if h.OnError != nil {
			h.OnError(err)
		}
	}
}

func (s *Subscribers) snapshot() []Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.subs, func(sub subscription, _ int) Handlers {
		return sub.handlers
	})
}
