package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/relay"
	"github.com/gorilla/websocket"
)

// Deps are the collaborators a Gateway routes to.
type Deps struct {
	Registry *hub.Registry
	Router   *hub.Router
	Presence *presence.Broadcaster
	Relay    *relay.Relay
	Verifier auth.Verifier
}

// Gateway accepts WebSocket connections, authenticates them and
// translates their frames into registry, router and relay operations.
type Gateway struct {
	cfg      Config
	registry *hub.Registry
	router   *hub.Router
	presence *presence.Broadcaster
	relay    *relay.Relay
	verifier auth.Verifier
	origins  *originPolicy
	upgrader websocket.Upgrader
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewGateway builds a gateway over deps; cfg is sanitized first.
func NewGateway(cfg Config, deps Deps, log *slog.Logger) *Gateway {
	cfg = cfg.Sanitize()
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:      cfg,
		registry: deps.Registry,
		router:   deps.Router,
		presence: deps.Presence,
		relay:    deps.Relay,
		verifier: deps.Verifier,
		origins:  newOriginPolicy(cfg.Origins(), log),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.origins.checkOrigin,
	}
	return g
}

// ServeWS upgrades the request and runs the authentication handshake. The
// first frame must be an auth frame; its token is one of the credential
// sources, next to the Authorization header and the token cookie.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	creds := auth.FromRequest(r, g.cfg.TokenCookie)
	class := auth.ParseClientClass(r.Header.Get(auth.ClientClassHeader))

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	identity, err := g.authenticate(conn, creds, class)
	if err != nil {
		g.reject(conn, r.RemoteAddr, err)
		return
	}

	c := newClient(g, conn, r.RemoteAddr, identity)
	if !g.track(c) {
		c.close(reasonShutdown)
		g.reject(conn, r.RemoteAddr, errors.New("server is shutting down"))
		return
	}

	session, err := g.registry.Register(identity, c)
	if err != nil {
		g.log.Error("Session registration failed", "user", identity, "error", err)
		c.close("registration failed")
		g.abandon(c)
		g.reject(conn, r.RemoteAddr, errors.New("session unavailable"))
		return
	}
	c.session = session
	c.log = c.log.With("session", session)

	// The ack goes out before the pumps start so it precedes anything
	// fanned out to the new session.
	if err := g.writeDirect(conn, chat.SessionReady{SessionID: string(session), UserID: identity}); err != nil {
		c.log.Warn("Failed to acknowledge session", "error", err)
		g.registry.Unregister(session)
		c.close("handshake write failed")
		c.closeConnection()
		g.abandon(c)
		return
	}
	c.log.Info("Session ready", "class", class)

	go func() {
		defer g.wg.Done()
		c.writePump()
	}()
	go func() {
		defer g.wg.Done()
		c.readPump()
	}()
}

func (g *Gateway) authenticate(conn *websocket.Conn, creds auth.Credentials, class auth.ClientClass) (chat.Identity, error) {
	conn.SetReadLimit(g.cfg.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout)); err != nil {
		return "", err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: no handshake frame: %v", chat.ErrAuthentication, err)
	}
	evt, err := chat.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrAuthentication, err)
	}
	hello, ok := evt.(chat.Auth)
	if !ok {
		return "", fmt.Errorf("%w: expected auth frame, got %s", chat.ErrAuthentication, evt.Kind())
	}
	creds.InBand = hello.Token

	ctx, cancel := context.WithTimeout(g.ctx, g.cfg.HandshakeTimeout)
	defer cancel()
	return g.verifier.Verify(ctx, creds.Resolve(class))
}

// reject answers a failed handshake with auth-error and closes the
// transport. No session exists at this point.
func (g *Gateway) reject(conn *websocket.Conn, addr string, cause error) {
	g.log.Info("Connection rejected", "addr", addr, "error", cause)
	msg := "Authentication failed"
	switch {
	case errors.Is(cause, chat.ErrMissingCredential):
		msg = "Authentication token required"
	case errors.Is(cause, chat.ErrInvalidCredential):
		msg = "Invalid token provided"
	case !errors.Is(cause, chat.ErrAuthentication):
		msg = cause.Error()
	}
	if err := g.writeDirect(conn, chat.AuthError{Message: msg}); err != nil && !isExpectedCloseError(err) {
		g.log.Debug("Failed to write auth error", "addr", addr, "error", err)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg)
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func (g *Gateway) writeDirect(conn *websocket.Conn, evt chat.Event) error {
	data, err := chat.Encode(evt)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// dispatch routes one inbound frame. Protocol errors are logged and the
// frame dropped; the connection stays up.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	evt, err := chat.Decode(raw)
	if err != nil {
		c.log.Warn("Dropped invalid frame", "error", err)
		return
	}

	switch evt.Kind() {
	case chat.KindJoinRoom:
		room := evt.(chat.JoinRoom).RoomID
		if err := g.router.Join(c.session, room); err != nil {
			c.log.Warn("Join failed", "room", room, "error", err)
			return
		}
		c.Deliver(chat.RoomJoined{RoomID: room})
	case chat.KindLeaveRoom:
		room := evt.(chat.LeaveRoom).RoomID
		g.router.Leave(c.session, room)
		c.Deliver(chat.RoomLeft{RoomID: room})
	case chat.KindSendMessage:
		msg := evt.(chat.SendMessage)
		if _, err := g.relay.SendMessage(c.ctx, c.identity, msg.ReceiverID, msg.Message); err != nil {
			c.log.Warn("Message rejected", "receiver", msg.ReceiverID, "error", err)
		}
	case chat.KindMarkRead:
		peer := evt.(chat.MarkRead).PeerID
		if _, err := g.relay.MarkRead(c.ctx, c.identity, peer); err != nil {
			c.log.Warn("Mark read failed", "peer", peer, "error", err)
		}
	case chat.KindAuth:
		c.log.Debug("Ignoring auth frame on authenticated session")
	case chat.KindNewMessage, chat.KindUserStatusUpdate, chat.KindMessagesRead,
		chat.KindRoomJoined, chat.KindRoomLeft, chat.KindAuthError, chat.KindSessionReady:
		c.log.Warn("Dropped server-only event from client", "event", evt.Kind())
	default:
		c.log.Warn("Dropped unknown event", "event", evt.Kind())
	}
}
