package chat

import "fmt"

// Error taxonomy. Concrete failures wrap one of the three roots so callers
// can branch with errors.Is.
var (
	// ErrAuthentication covers bad, missing or expired credentials. It is
	// fatal for the attempt and never retried by the server.
	ErrAuthentication = fmt.Errorf("authentication failed")
	// ErrTransport covers network failures; clients retry them.
	ErrTransport = fmt.Errorf("transport failure")
	// ErrProtocol covers malformed frames; the frame is dropped and the
	// connection stays up.
	ErrProtocol = fmt.Errorf("protocol violation")

	ErrMissingCredential   = fmt.Errorf("%w: authentication token required", ErrAuthentication)
	ErrInvalidCredential   = fmt.Errorf("%w: invalid token provided", ErrAuthentication)
	ErrCandidatesExhausted = fmt.Errorf("%w: all connection attempts failed", ErrTransport)
)
