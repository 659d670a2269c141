//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_message_store.go -package=mocks
package storage

import (
	"context"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/google/uuid"
)

// Message is a persisted chat message.
type Message struct {
	ID         uuid.UUID     `json:"id"`
	Room       chat.RoomID   `json:"room"`
	SenderID   chat.Identity `json:"senderId"`
	ReceiverID chat.Identity `json:"receiverId"`
	Body       string        `json:"body"`
	CreatedAt  time.Time     `json:"createdAt"`
	IsRead     bool          `json:"isRead"`
}

// MessageStore is the durable side of the relay path.
type MessageStore interface {
	Save(ctx context.Context, msg Message) error
	// MarkRead flags every unread message of room addressed to reader and
	// returns how many changed.
	MarkRead(ctx context.Context, room chat.RoomID, reader chat.Identity) (int, error)
	// History returns up to limit most recent messages of room, oldest
	// first. A non-positive limit returns everything.
	History(ctx context.Context, room chat.RoomID, limit int) ([]Message, error)
}
