// Package testhelpers provides common utilities for testing the roomchat
// gateway: HTTP requests, WebSocket dials with the auth handshake, and
// event reads with timeouts.
package testhelpers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/gorilla/websocket"
)

// TestOrigin is the origin test servers allow and test dials present.
const TestOrigin = "http://localhost:8080"

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, expected) {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request with an optional bearer
// token and body, returning the response. It fails the test if the request
// cannot be executed.
func MakeRequest(t *testing.T, method, url, token string, body io.Reader) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with the test origin plus any extra headers.
func ConnectWebSocket(url string, headers http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	h := http.Header{}
	for k, v := range headers {
		h[k] = v
	}
	if h.Get("Origin") == "" {
		h.Set("Origin", TestOrigin)
	}
	conn, resp, err := dialer.Dial(url, h)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Handshake sends the auth frame carrying token and waits for the server's
// answer. It returns the session-ready ack, or an error wrapping
// chat.ErrAuthentication when the server answered with auth-error.
func Handshake(conn *websocket.Conn, token string) (chat.SessionReady, error) {
	if err := SendEvent(conn, chat.Auth{Token: token}); err != nil {
		return chat.SessionReady{}, err
	}
	evt, err := ReadEvent(conn, 5*time.Second)
	if err != nil {
		return chat.SessionReady{}, err
	}
	switch e := evt.(type) {
	case chat.SessionReady:
		return e, nil
	case chat.AuthError:
		return chat.SessionReady{}, fmt.Errorf("%w: %s", chat.ErrAuthentication, e.Message)
	default:
		return chat.SessionReady{}, fmt.Errorf("unexpected %s before session-ready", evt.Kind())
	}
}

// Connect dials and completes the handshake, failing the test on error.
// The connection is closed when the test ends.
func Connect(t *testing.T, serverURL, token string) (*websocket.Conn, chat.SessionReady) {
	t.Helper()
	conn, _, err := ConnectWebSocket(WebSocketURL(serverURL), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	ready, err := Handshake(conn, token)
	if err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	return conn, ready
}

// SendEvent encodes and writes one event.
func SendEvent(conn *websocket.Conn, evt chat.Event) error {
	data, err := chat.Encode(evt)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ReadEvent reads and decodes the next frame within timeout.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (chat.Event, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return chat.Decode(data)
}

// ExpectEvent reads frames until one of type T arrives, skipping others,
// and fails the test if none arrives within timeout.
func ExpectEvent[T chat.Event](t *testing.T, conn *websocket.Conn, timeout time.Duration) T {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		evt, err := ReadEvent(conn, remaining)
		if err != nil {
			var zero T
			t.Fatalf("Expected %s, read failed: %v", zero.Kind(), err)
		}
		if typed, ok := evt.(T); ok {
			return typed
		}
	}
	var zero T
	t.Fatalf("Timed out waiting for %s", zero.Kind())
	return zero
}

// ExpectNoEvent fails the test if a frame of type T arrives within wait.
// Other kinds are skipped. A timed out read leaves the connection unusable,
// so this must be the last read on conn.
func ExpectNoEvent[T chat.Event](t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		evt, err := ReadEvent(conn, remaining)
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			t.Fatalf("Unexpected read error: %v", err)
		}
		if _, ok := evt.(T); ok {
			t.Fatalf("Unexpected %s: %+v", evt.Kind(), evt)
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
