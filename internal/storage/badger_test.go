package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, slog.Default())
}

func conversation(room chat.RoomID, at time.Time) []Message {
	return []Message{
		{ID: uuid.New(), Room: room, SenderID: "u1", ReceiverID: "u2", Body: "Hello, is the room free in May?", CreatedAt: at},
		{ID: uuid.New(), Room: room, SenderID: "u2", ReceiverID: "u1", Body: "Yes it is", CreatedAt: at.Add(time.Minute)},
		{ID: uuid.New(), Room: room, SenderID: "u1", ReceiverID: "u2", Body: "Can I visit on Friday?", CreatedAt: at.Add(2 * time.Minute)},
	}
}

func TestBadgerStore_HistoryIsChronological(t *testing.T) {
	req := require.New(t)
	store := openStore(t)
	ctx := context.Background()
	room := chat.ConversationRoom("u1", "u2")
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// Given a conversation stored out of order, plus noise in another room
	msgs := conversation(room, at)
	for _, i := range []int{2, 0, 1} {
		req.NoError(store.Save(ctx, msgs[i]))
	}
	req.NoError(store.Save(ctx, Message{ID: uuid.New(), Room: "u1_u3", SenderID: "u3", ReceiverID: "u1", Body: "other", CreatedAt: at}))

	// When the full history is read
	all, err := store.History(ctx, room, 0)
	req.NoError(err)

	// Then it is the room's messages, oldest first
	req.Equal(msgs, all)

	// And a limit keeps the most recent ones
	recent, err := store.History(ctx, room, 2)
	req.NoError(err)
	req.Equal(msgs[1:], recent)
}

func TestBadgerStore_MarkRead(t *testing.T) {
	req := require.New(t)
	store := openStore(t)
	ctx := context.Background()
	room := chat.ConversationRoom("u1", "u2")

	for _, m := range conversation(room, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)) {
		req.NoError(store.Save(ctx, m))
	}

	// u2 reads the two messages u1 sent
	count, err := store.MarkRead(ctx, room, "u2")
	req.NoError(err)
	req.Equal(2, count)

	// Reading again changes nothing
	count, err = store.MarkRead(ctx, room, "u2")
	req.NoError(err)
	req.Zero(count)

	history, err := store.History(ctx, room, 0)
	req.NoError(err)
	for _, m := range history {
		req.Equal(m.ReceiverID == "u2", m.IsRead, "message %s", m.Body)
	}
}

func TestBadgerStore_EmptyRoom(t *testing.T) {
	req := require.New(t)
	store := openStore(t)

	history, err := store.History(context.Background(), "nobody_here", 10)
	req.NoError(err)
	req.Empty(history)

	count, err := store.MarkRead(context.Background(), "nobody_here", "u1")
	req.NoError(err)
	req.Zero(count)
}

func TestBadgerStore_RoomsSharingAPrefixStayApart(t *testing.T) {
	req := require.New(t)
	store := openStore(t)
	ctx := context.Background()
	short := chat.ConversationRoom("a", "b")
	long := chat.ConversationRoom("a", "b:x")

	// Given a message in a room whose id starts with another room's id
	req.NoError(store.Save(ctx, Message{ID: uuid.New(), Room: long, SenderID: "b:x", ReceiverID: "a", Body: "hi", CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}))

	// Then the shorter room neither lists nor marks it
	history, err := store.History(ctx, short, 0)
	req.NoError(err)
	req.Empty(history)

	count, err := store.MarkRead(ctx, short, "a")
	req.NoError(err)
	req.Zero(count)

	// And it is still unread in its own room
	history, err = store.History(ctx, long, 0)
	req.NoError(err)
	req.Len(history, 1)
	req.False(history[0].IsRead)
}
