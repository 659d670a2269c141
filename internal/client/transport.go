package client

import (
	"context"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

// Credential is what a Manager authenticates with.
type Credential struct {
	Token string
	Class auth.ClientClass
}

// Transport is one established, authenticated connection.
type Transport interface {
	// Send writes one encoded frame. Safe for concurrent use.
	Send(data []byte) error
	// Alive reports whether the underlying connection is still usable.
	Alive() bool
	// Session is the server's acknowledgement of the handshake.
	Session() chat.SessionReady
	Close() error
}

// Receiver is told about a Transport's inbound frames and its end. Calls
// start only after Dial returned, and Closed is the last call.
type Receiver interface {
	Received(evt chat.Event)
	Closed(err error)
}

// Dialer opens a Transport to one endpoint and completes the auth
// handshake. Rejected credentials yield an error wrapping
// chat.ErrAuthentication; anything else wraps chat.ErrTransport.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, cred Credential, rcv Receiver) (Transport, error)
}
