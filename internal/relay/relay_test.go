package relay_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/Tyrowin/roomchat/internal/mocks"
	"github.com/Tyrowin/roomchat/internal/relay"
	"github.com/Tyrowin/roomchat/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sink struct {
	mu     sync.Mutex
	events []chat.Event
}

func (s *sink) Deliver(evt chat.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return true
}

func (s *sink) received() []chat.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Event(nil), s.events...)
}

var fixedNow = time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)

type fixture struct {
	store  *mocks.MockMessageStore
	relay  *relay.Relay
	reg    *hub.Registry
	router *hub.Router
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	log := slog.New(slog.DiscardHandler)
	reg := hub.NewRegistry(log)
	router := hub.NewRouter(reg)
	store := mocks.NewMockMessageStore(ctrl)
	return fixture{
		store:  store,
		relay:  relay.New(router, store, log, relay.WithClock(func() time.Time { return fixedNow })),
		reg:    reg,
		router: router,
	}
}

func (f fixture) joined(t *testing.T, identity chat.Identity, room chat.RoomID) *sink {
	t.Helper()
	s := &sink{}
	id, err := f.reg.Register(identity, s)
	require.NoError(t, err)
	require.NoError(t, f.router.Join(id, room))
	return s
}

// TestSendMessage_FansOutToAllJoinedSessions covers the two-device
// scenario: both of the receiver's devices and the sender's own session
// get the message exactly once.
func TestSendMessage_FansOutToAllJoinedSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	room := chat.ConversationRoom("u1", "u2")

	// Given u2 on two devices and u1 on one, all joined to the room
	phone := f.joined(t, "u2", room)
	laptop := f.joined(t, "u2", room)
	sender := f.joined(t, "u1", room)

	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg storage.Message) error {
			req.Equal(room, msg.Room)
			req.Equal("Is parking included?", msg.Body)
			req.Equal(fixedNow, msg.CreatedAt)
			return nil
		})

	// When u1 sends a message
	evt, err := f.relay.SendMessage(context.Background(), "u1", "u2", "  Is parking included? ")

	// Then every joined session received it once
	req.NoError(err)
	req.Equal(room, evt.ConversationID)
	req.NotEmpty(evt.ID)
	for _, s := range []*sink{phone, laptop, sender} {
		received := s.received()
		req.Len(received, 1)
		req.Equal(evt, received[0])
	}
}

func TestSendMessage_StoreFailureStillDelivers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	room := chat.ConversationRoom("u1", "u2")
	peer := f.joined(t, "u2", room)

	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := f.relay.SendMessage(context.Background(), "u1", "u2", "hello")
	req.NoError(err)
	req.Len(peer.received(), 1)
}

// TestSendMessage_OfflineReceiver covers a receiver with no live session:
// the message is persisted and nothing is delivered.
func TestSendMessage_OfflineReceiver(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	evt, err := f.relay.SendMessage(context.Background(), "u1", "u2", "still there?")
	req.NoError(err)
	req.False(evt.IsRead)
	req.False(f.reg.IsOnline("u2"))
}

func TestSendMessage_Rejections(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		sender   chat.Identity
		receiver chat.Identity
		body     string
		want     error
	}{
		{"missing receiver", "u1", "", "hi", relay.ErrInvalidMessage},
		{"self", "u1", "u1", "hi", relay.ErrSelfMessage},
		{"blank body", "u1", "u2", "   ", relay.ErrInvalidMessage},
		{"too long", "u1", "u2", strings.Repeat("a", relay.MaxMessageLength+1), relay.ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.relay.SendMessage(context.Background(), tt.sender, tt.receiver, tt.body)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, chat.ErrProtocol)
		})
	}
}

func TestMarkRead_NotifiesRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	room := chat.ConversationRoom("u1", "u2")
	sender := f.joined(t, "u1", room)

	f.store.EXPECT().MarkRead(gomock.Any(), room, chat.Identity("u2")).Return(3, nil)

	evt, err := f.relay.MarkRead(context.Background(), "u2", "u1")
	req.NoError(err)
	req.Equal(chat.MessagesRead{ConversationID: room, ReaderID: "u2", Count: 3}, evt)
	req.Equal([]chat.Event{evt}, sender.received())
}

func TestMarkRead_StoreFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	room := chat.ConversationRoom("u1", "u2")
	sender := f.joined(t, "u1", room)

	f.store.EXPECT().MarkRead(gomock.Any(), room, chat.Identity("u2")).Return(0, errors.New("closed"))

	_, err := f.relay.MarkRead(context.Background(), "u2", "u1")
	req.Error(err)
	req.Empty(sender.received())
}

func TestHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	room := chat.ConversationRoom("u1", "u2")

	f.store.EXPECT().History(gomock.Any(), room, 50).Return([]storage.Message{
		{Room: room, SenderID: "u1", ReceiverID: "u2", Body: "first", CreatedAt: fixedNow},
		{Room: room, SenderID: "u2", ReceiverID: "u1", Body: "second", CreatedAt: fixedNow.Add(time.Second), IsRead: true},
	}, nil)

	history, err := f.relay.History(context.Background(), "u2", "u1")
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("first", history[0].Message)
	req.True(history[1].IsRead)
}
