package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Envelope is the JSON frame exchanged over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps an event in its envelope.
func Encode(evt Event) ([]byte, error) {
	if evt == nil {
		return nil, fmt.Errorf("%w: nil event", ErrProtocol)
	}
	return EncodeRaw(evt.Kind().String(), evt)
}

// EncodeRaw builds an envelope from an arbitrary event name and payload.
// It backs the client's generic emit.
func EncodeRaw(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s payload: %v", ErrProtocol, name, err)
	}
	return json.Marshal(Envelope{Type: name, Payload: raw})
}

// Decode parses and validates one frame. Every failure wraps ErrProtocol.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrProtocol, err)
	}
	kind, err := ParseKind(env.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindNewMessage:
		return decodeAs[NewMessage](kind, env.Payload)
	case KindUserStatusUpdate:
		return decodeAs[UserStatusUpdate](kind, env.Payload)
	case KindMessagesRead:
		return decodeAs[MessagesRead](kind, env.Payload)
	case KindRoomJoined:
		return decodeAs[RoomJoined](kind, env.Payload)
	case KindRoomLeft:
		return decodeAs[RoomLeft](kind, env.Payload)
	case KindAuthError:
		return decodeAs[AuthError](kind, env.Payload)
	case KindSessionReady:
		return decodeAs[SessionReady](kind, env.Payload)
	case KindAuth:
		return decodeAs[Auth](kind, env.Payload)
	case KindJoinRoom:
		return decodeAs[JoinRoom](kind, env.Payload)
	case KindLeaveRoom:
		return decodeAs[LeaveRoom](kind, env.Payload)
	case KindSendMessage:
		return decodeAs[SendMessage](kind, env.Payload)
	case KindMarkRead:
		return decodeAs[MarkRead](kind, env.Payload)
	default:
		return nil, fmt.Errorf("%w: unsupported event type %q", ErrProtocol, env.Type)
	}
}

func decodeAs[T Event](kind Kind, raw json.RawMessage) (Event, error) {
	var payload T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("%w: invalid %s payload: %v", ErrProtocol, kind, err)
		}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: invalid %s payload: %v", ErrProtocol, kind, err)
	}
	return payload, nil
}

// Validate checks the struct tags of a payload decoded outside of Decode,
// such as an HTTP request body.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}
