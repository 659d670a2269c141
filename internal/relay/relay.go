// Package relay implements the message write path: persist through the
// message store, then fan out to the conversation room.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/Tyrowin/roomchat/internal/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const MaxMessageLength = 4000

var (
	ErrInvalidMessage = fmt.Errorf("%w: invalid message", chat.ErrProtocol)
	ErrSelfMessage    = fmt.Errorf("%w: cannot message yourself", chat.ErrProtocol)
)

// Broadcaster is the part of hub.Router the relay fans out through.
type Broadcaster interface {
	Broadcast(room chat.RoomID, evt chat.Event) int
}

var _ Broadcaster = (*hub.Router)(nil)

// Relay persists chat messages and fans them out to their room.
type Relay struct {
	rooms        Broadcaster
	store        storage.MessageStore
	log          *slog.Logger
	now          func() time.Time
	historyLimit int
}

// Option customizes a Relay.
type Option func(*Relay)

// WithClock overrides the time source stamping messages.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// WithHistoryLimit caps how many messages History returns.
func WithHistoryLimit(limit int) Option {
	return func(r *Relay) { r.historyLimit = limit }
}

// New builds a Relay broadcasting through rooms and persisting to store.
func New(rooms Broadcaster, store storage.MessageStore, log *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		rooms:        rooms,
		store:        store,
		log:          log,
		now:          time.Now,
		historyLimit: 50,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendMessage records a message from sender to receiver and announces it
// to every session joined to their conversation room, the sender's own
// sessions included. A store failure is logged and does not stop delivery.
func (r *Relay) SendMessage(ctx context.Context, sender, receiver chat.Identity, body string) (chat.NewMessage, error) {
	body = strings.TrimSpace(body)
	switch {
	case sender == "" || receiver == "":
		return chat.NewMessage{}, fmt.Errorf("%w: missing participant", ErrInvalidMessage)
	case sender == receiver:
		return chat.NewMessage{}, ErrSelfMessage
	case body == "":
		return chat.NewMessage{}, fmt.Errorf("%w: empty body", ErrInvalidMessage)
	case utf8.RuneCountInString(body) > MaxMessageLength:
		return chat.NewMessage{}, fmt.Errorf("%w: body longer than %d characters", ErrInvalidMessage, MaxMessageLength)
	}

	msg := storage.Message{
		ID:         uuid.New(),
		Room:       chat.ConversationRoom(sender, receiver),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.Save(ctx, msg); err != nil {
		r.log.Error("Failed to persist message", "room", msg.Room, "sender", sender, "error", err)
	}

	evt := toEvent(msg)
	delivered := r.rooms.Broadcast(msg.Room, evt)
	r.log.Debug("Message relayed", "room", msg.Room, "sender", sender, "delivered", delivered)
	return evt, nil
}

// MarkRead flags peer's messages to reader as read and tells the room how
// many changed.
func (r *Relay) MarkRead(ctx context.Context, reader, peer chat.Identity) (chat.MessagesRead, error) {
	if reader == "" || peer == "" {
		return chat.MessagesRead{}, fmt.Errorf("%w: missing participant", ErrInvalidMessage)
	}
	room := chat.ConversationRoom(reader, peer)
	count, err := r.store.MarkRead(ctx, room, reader)
	if err != nil {
		return chat.MessagesRead{}, fmt.Errorf("mark read in %s: %w", room, err)
	}

	evt := chat.MessagesRead{ConversationID: room, ReaderID: reader, Count: count}
	r.rooms.Broadcast(room, evt)
	return evt, nil
}

// History returns the latest messages exchanged between a and b, oldest
// first. Clients use it to re-sync after a reconnect.
func (r *Relay) History(ctx context.Context, a, b chat.Identity) ([]chat.NewMessage, error) {
	room := chat.ConversationRoom(a, b)
	msgs, err := r.store.History(ctx, room, r.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", room, err)
	}
	return lo.Map(msgs, func(m storage.Message, _ int) chat.NewMessage {
		return toEvent(m)
	}), nil
}

func toEvent(m storage.Message) chat.NewMessage {
	return chat.NewMessage{
		ID:             m.ID.String(),
		ConversationID: m.Room,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Message:        m.Body,
		CreatedAt:      m.CreatedAt,
		IsRead:         m.IsRead,
	}
}
