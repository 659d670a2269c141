package chat

import "time"

// Identity is the stable opaque identifier of a user, independent of how
// many devices they have connected.
type Identity string

// PresenceStatus is the derived online state carried by user-status-update.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Event is implemented by every payload type. The set of implementations
// is closed and mirrors Kind.
type Event interface {
	Kind() Kind
}

// NewMessage is fanned out to the members of a conversation room.
type NewMessage struct {
	ID             string    `json:"id"`
	ConversationID RoomID    `json:"conversationId"`
	SenderID       Identity  `json:"senderId"`
	ReceiverID     Identity  `json:"receiverId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
	IsRead         bool      `json:"isRead"`
}

// UserStatusUpdate announces an online/offline transition of UserID.
type UserStatusUpdate struct {
	UserID    Identity       `json:"userId"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// MessagesRead tells room members that ReaderID has read Count messages.
type MessagesRead struct {
	ConversationID RoomID   `json:"conversationId"`
	ReaderID       Identity `json:"readerId"`
	Count          int      `json:"count"`
}

type RoomJoined struct {
	RoomID RoomID `json:"roomId"`
}

type RoomLeft struct {
	RoomID RoomID `json:"roomId"`
}

// AuthError is written to a transport whose handshake failed, right
// before it is closed.
type AuthError struct {
	Message string `json:"message"`
}

// SessionReady acknowledges a successful handshake.
type SessionReady struct {
	SessionID string   `json:"sessionId"`
	UserID    Identity `json:"userId"`
}

// Auth is the first frame of every connection. Token is the in-band
// credential and may be empty when the credential travels in a header or
// cookie.
type Auth struct {
	Token string `json:"token,omitempty" validate:"max=4096"`
}

type JoinRoom struct {
	RoomID RoomID `json:"roomId" validate:"required,max=256"`
}

type LeaveRoom struct {
	RoomID RoomID `json:"roomId" validate:"required,max=256"`
}

type SendMessage struct {
	ReceiverID Identity `json:"receiverId" validate:"required,max=128"`
	Message    string   `json:"message" validate:"required,max=4000"`
}

type MarkRead struct {
	PeerID Identity `json:"peerId" validate:"required,max=128"`
}

func (NewMessage) Kind() Kind       { return KindNewMessage }
func (UserStatusUpdate) Kind() Kind { return KindUserStatusUpdate }
func (MessagesRead) Kind() Kind     { return KindMessagesRead }
func (RoomJoined) Kind() Kind       { return KindRoomJoined }
func (RoomLeft) Kind() Kind         { return KindRoomLeft }
func (AuthError) Kind() Kind        { return KindAuthError }
func (SessionReady) Kind() Kind     { return KindSessionReady }
func (Auth) Kind() Kind             { return KindAuth }
func (JoinRoom) Kind() Kind         { return KindJoinRoom }
func (LeaveRoom) Kind() Kind        { return KindLeaveRoom }
func (SendMessage) Kind() Kind      { return KindSendMessage }
func (MarkRead) Kind() Kind         { return KindMarkRead }
