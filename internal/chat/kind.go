// Package chat defines the wire protocol shared by the gateway and the
// client: the closed set of event kinds, their payloads, the JSON envelope
// codec, conversation room naming and the error taxonomy.
package chat

import "fmt"

// Kind enumerates every event that can travel over a chat connection.
// Adding a kind means adding a constant, a payload type and a case in
// Decode; the exhaustive switches in the gateway and the client follow.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Server to client.
	KindNewMessage
	KindUserStatusUpdate
	KindMessagesRead
	KindRoomJoined
	KindRoomLeft
	KindAuthError
	KindSessionReady

	// Client to server.
	KindAuth
	KindJoinRoom
	KindLeaveRoom
	KindSendMessage
	KindMarkRead
)

var kindNames = map[Kind]string{
	KindNewMessage:       "new-message",
	KindUserStatusUpdate: "user-status-update",
	KindMessagesRead:     "messages-read",
	KindRoomJoined:       "room-joined",
	KindRoomLeft:         "room-left",
	KindAuthError:        "auth-error",
	KindSessionReady:     "session-ready",
	KindAuth:             "auth",
	KindJoinRoom:         "join-room",
	KindLeaveRoom:        "leave-room",
	KindSendMessage:      "send-message",
	KindMarkRead:         "mark-read",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(name string) (Kind, error) {
	k, ok := kindsByName[name]
	if !ok {
		return KindUnknown, fmt.Errorf("%w: unknown event type %q", ErrProtocol, name)
	}
	return k, nil
}

// Buffered reports whether a client keeps events of this kind until a
// message consumer subscribes. Presence and acknowledgements are
// fire-and-forget.
func (k Kind) Buffered() bool {
	return k == KindNewMessage
}

// Inbound reports whether clients are allowed to send this kind.
func (k Kind) Inbound() bool {
	switch k {
	case KindAuth, KindJoinRoom, KindLeaveRoom, KindSendMessage, KindMarkRead:
		return true
	default:
		return false
	}
}
