package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversationRoom_IsCommutative(t *testing.T) {
	req := require.New(t)
	pairs := [][2]Identity{
		{"u1", "u2"},
		{"66b0f2", "66a9c1"},
		{"alice", "alice"},
		{"", "bob"},
	}
	for _, p := range pairs {
		req.Equal(ConversationRoom(p[0], p[1]), ConversationRoom(p[1], p[0]))
	}
	req.Equal(RoomID("u1_u2"), ConversationRoom("u2", "u1"))
}

func TestDecode_KnownEvent(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Given a new-message encoded by the gateway
	data, err := Encode(NewMessage{
		ID:             "m-1",
		ConversationID: ConversationRoom("u1", "u2"),
		SenderID:       "u1",
		ReceiverID:     "u2",
		Message:        "is the room still available?",
		CreatedAt:      at,
	})
	req.NoError(err)
	req.Contains(string(data), `"type":"new-message"`)

	// When it is decoded on the other side
	evt, err := Decode(data)
	req.NoError(err)

	// Then the tagged variant is restored
	msg, ok := evt.(NewMessage)
	req.True(ok)
	req.Equal(KindNewMessage, msg.Kind())
	req.Equal(Identity("u1"), msg.SenderID)
	req.True(at.Equal(msg.CreatedAt))
}

func TestDecode_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"unknown type", `{"type":"new-favourite","payload":{}}`},
		{"missing type", `{"payload":{"roomId":"a_b"}}`},
		{"wrong payload shape", `{"type":"join-room","payload":{"roomId":42}}`},
		{"missing required field", `{"type":"join-room","payload":{}}`},
		{"empty message body", `{"type":"send-message","payload":{"receiverId":"u2","message":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrProtocol), "got %v", err)
		})
	}
}

func TestDecode_AuthWithoutPayload(t *testing.T) {
	req := require.New(t)
	evt, err := Decode([]byte(`{"type":"auth"}`))
	req.NoError(err)
	req.Equal(Auth{}, evt)
}

func TestKind_Classification(t *testing.T) {
	req := require.New(t)
	req.True(KindNewMessage.Buffered())
	req.False(KindUserStatusUpdate.Buffered())
	req.False(KindRoomJoined.Buffered())
	req.True(KindJoinRoom.Inbound())
	req.False(KindNewMessage.Inbound())

	for k := KindNewMessage; k <= KindMarkRead; k++ {
		parsed, err := ParseKind(k.String())
		req.NoError(err)
		req.Equal(k, parsed)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	req := require.New(t)
	req.ErrorIs(ErrMissingCredential, ErrAuthentication)
	req.ErrorIs(ErrInvalidCredential, ErrAuthentication)
	req.ErrorIs(ErrCandidatesExhausted, ErrTransport)
	req.NotErrorIs(ErrCandidatesExhausted, ErrAuthentication)
}
