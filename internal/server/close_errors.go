package server

import (
	"errors"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// isExpectedCloseError reports errors that only mean the peer or we already
// closed the connection.
func isExpectedCloseError(err error) bool {
	return err == nil ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
