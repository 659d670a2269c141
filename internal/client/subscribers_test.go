package client

import (
	"errors"
	"testing"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func message(id string) chat.NewMessage {
	return chat.NewMessage{ID: id, ConversationID: "alice_bob", SenderID: "bob", ReceiverID: "alice", Message: id}
}

func ids(msgs []chat.NewMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestSubscribers_BuffersMessagesUntilConsumerArrives(t *testing.T) {
	req := require.New(t)
	s := NewSubscribers(quietLogger())

	// Given a subscriber that only cares about presence
	presenceOnly := &recorder{}
	s.Subscribe("presence", Handlers{OnStatusUpdate: presenceOnly.handlers().OnStatusUpdate})

	// When messages and presence arrive
	s.Dispatch(message("m1"))
	s.Dispatch(chat.UserStatusUpdate{UserID: "bob", Status: chat.StatusOnline})
	s.Dispatch(message("m2"))

	// Then messages wait and presence is delivered, never buffered
	req.Equal(2, s.Buffered())
	req.Len(presenceOnly.Statuses(), 1)
	oldest, ok := s.Oldest()
	req.True(ok)
	req.Equal(chat.KindNewMessage, oldest.Kind)
	req.Equal(message("m1"), oldest.Event)
	req.False(oldest.ReceivedAt.IsZero())

	// When a message consumer subscribes it drains in arrival order
	first := &recorder{}
	s.Subscribe("first", first.handlers())
	req.Equal([]string{"m1", "m2"}, ids(first.Messages()))
	req.Zero(s.Buffered())

	// And a later consumer gets none of the drained messages
	second := &recorder{}
	s.Subscribe("second", second.handlers())
	req.Empty(second.Messages())

	// While new messages reach both
	s.Dispatch(message("m3"))
	req.Equal([]string{"m1", "m2", "m3"}, ids(first.Messages()))
	req.Equal([]string{"m3"}, ids(second.Messages()))
}

func TestSubscribers_PresenceWithoutListenerIsDropped(t *testing.T) {
	s := NewSubscribers(quietLogger())
	s.Dispatch(chat.UserStatusUpdate{UserID: "bob", Status: chat.StatusOffline})
	s.Dispatch(chat.MessagesRead{ConversationID: "alice_bob", ReaderID: "bob", Count: 1})
	require.Zero(t, s.Buffered())
}

func TestSubscribers_DispatchDuringDrainKeepsOrder(t *testing.T) {
	req := require.New(t)
	s := NewSubscribers(quietLogger())
	s.Dispatch(message("m1"))
	s.Dispatch(message("m2"))

	var got []string
	s.Subscribe("ui", Handlers{OnNewMessage: func(msg chat.NewMessage) {
		got = append(got, msg.ID)
		if msg.ID == "m1" {
			// Arrives while m2 is still waiting in the drain.
			s.Dispatch(message("m3"))
		}
	}})

	req.Equal([]string{"m1", "m2", "m3"}, got)
	req.Zero(s.Buffered())
}

func TestSubscribers_SameIDReplaces(t *testing.T) {
	req := require.New(t)
	s := NewSubscribers(quietLogger())

	old, replacement := &recorder{}, &recorder{}
	req.Equal("ui", s.Subscribe("ui", old.handlers()))
	req.Equal("ui", s.Subscribe("ui", replacement.handlers()))
	req.Equal(1, s.Len())

	s.Dispatch(message("m1"))
	s.Connected()
	req.Empty(old.Messages())
	req.Zero(old.Connects())
	req.Len(replacement.Messages(), 1)
	req.Equal(1, replacement.Connects())
}

func TestSubscribers_GeneratedIDAndUnsubscribe(t *testing.T) {
	req := require.New(t)
	s := NewSubscribers(quietLogger())

	id := s.Subscribe("", Handlers{})
	_, err := uuid.Parse(id)
	req.NoError(err)
	req.Equal(1, s.Len())

	s.Unsubscribe(id)
	s.Unsubscribe(id)
	s.Unsubscribe("never-registered")
	req.Zero(s.Len())
}

func TestSubscribers_Signals(t *testing.T) {
	req := require.New(t)
	s := NewSubscribers(quietLogger())
	a, b := &recorder{}, &recorder{}
	s.Subscribe("a", a.handlers())
	s.Subscribe("b", b.handlers())
	s.Subscribe("mute", Handlers{})

	boom := errors.New("boom")
	s.Connected()
	s.Disconnected("transport closed")
	s.Failed(boom)

	for _, r := range []*recorder{a, b} {
		req.Equal(1, r.Connects())
		req.Equal([]string{"transport closed"}, r.Disconnects())
		req.Equal([]error{boom}, r.Errors())
	}
}
