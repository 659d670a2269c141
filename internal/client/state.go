package client

import "github.com/Tyrowin/roomchat/internal/chat"

// State is the connection state of a Manager.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status is a snapshot of a Manager. Candidate is meaningful while
// Connecting, Attempt while Reconnecting and Session while Connected.
type Status struct {
	State     State
	Candidate int
	Attempt   int
	Endpoint  string
	Session   chat.SessionReady
}
