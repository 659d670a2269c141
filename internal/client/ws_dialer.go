package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/gorilla/websocket"
)

const (
	// The gateway pings every 54s; a silent minute means the link is gone.
	readWait  = 70 * time.Second
	writeWait = 10 * time.Second

	defaultHandshakeTimeout = 10 * time.Second
)

// WSDialer dials the gateway's /ws endpoint with gorilla/websocket.
type WSDialer struct {
	// Origin is sent as the Origin header when set.
	Origin           string
	HandshakeTimeout time.Duration
	log              *slog.Logger
}

// NewWSDialer returns a dialer sending origin with the default handshake
// timeout.
func NewWSDialer(origin string, log *slog.Logger) *WSDialer {
	return &WSDialer{Origin: origin, HandshakeTimeout: defaultHandshakeTimeout, log: log}
}

// Dial connects, sends the auth frame and waits for session-ready.
func (d *WSDialer) Dial(ctx context.Context, endpoint string, cred Credential, rcv Receiver) (Transport, error) {
	target, err := WebSocketURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrTransport, err)
	}

	header := http.Header{}
	header.Set(auth.ClientClassHeader, string(cred.Class))
	if cred.Token != "" {
		header.Set("Authorization", "Bearer "+cred.Token)
	}
	if d.Origin != "" {
		header.Set("Origin", d.Origin)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", chat.ErrTransport, target, err)
	}

	ready, err := d.handshake(ctx, conn, cred.Token)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	t := &wsTransport{
		conn:    conn,
		session: ready,
		log:     d.log.With("endpoint", target, "session", ready.SessionID),
	}
	t.alive.Store(true)
	go t.readLoop(rcv)
	return t, nil
}

func (d *WSDialer) handshake(ctx context.Context, conn *websocket.Conn, token string) (chat.SessionReady, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(d.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	data, err := chat.Encode(chat.Auth{Token: token})
	if err != nil {
		return chat.SessionReady{}, err
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return chat.SessionReady{}, fmt.Errorf("%w: send auth: %v", chat.ErrTransport, err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return chat.SessionReady{}, fmt.Errorf("%w: await session: %v", chat.ErrTransport, err)
	}
	evt, err := chat.Decode(raw)
	if err != nil {
		return chat.SessionReady{}, fmt.Errorf("%w: %v", chat.ErrTransport, err)
	}
	switch e := evt.(type) {
	case chat.SessionReady:
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return e, nil
	case chat.AuthError:
		return chat.SessionReady{}, fmt.Errorf("%w: %s", chat.ErrAuthentication, e.Message)
	default:
		return chat.SessionReady{}, fmt.Errorf("%w: unexpected %s before session-ready", chat.ErrTransport, evt.Kind())
	}
}

// WebSocketURL maps an endpoint candidate to the gateway's WebSocket URL.
func WebSocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}

type wsTransport struct {
	conn      *websocket.Conn
	session   chat.SessionReady
	writeMu   sync.Mutex
	alive     atomic.Bool
	closeOnce sync.Once
	log       *slog.Logger
}

func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.alive.Load() {
		return fmt.Errorf("%w: connection closed", chat.ErrTransport)
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.alive.Store(false)
		return fmt.Errorf("%w: %v", chat.ErrTransport, err)
	}
	return nil
}

func (t *wsTransport) Session() chat.SessionReady {
	return t.session
}

func (t *wsTransport) Alive() bool {
	return t.alive.Load()
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.alive.Store(false)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) readLoop(rcv Receiver) {
	t.conn.SetPingHandler(func(data string) error {
		_ = t.conn.SetReadDeadline(time.Now().Add(readWait))
		err := t.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			t.alive.Store(false)
			t.log.Debug("Read loop ended", "error", err)
			rcv.Closed(err)
			return
		}
		evt, err := chat.Decode(raw)
		if err != nil {
			t.log.Warn("Dropped invalid frame", "error", err)
			continue
		}
		rcv.Received(evt)
	}
}
