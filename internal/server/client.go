package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second

	reasonSlowConsumer = "send buffer full"
	reasonShutdown     = "server shutdown"
)

// Client is one authenticated WebSocket connection. It is the hub.Sink of
// its session: fan-out enqueues into send and the write pump drains it.
type Client struct {
	conn     *websocket.Conn
	gw       *Gateway
	addr     string
	identity chat.Identity
	session  hub.SessionID

	send      chan chat.Event
	done      chan struct{}
	closeOnce sync.Once
	reason    string

	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rateLimiter
	log     *slog.Logger
}

func newClient(gw *Gateway, conn *websocket.Conn, addr string, identity chat.Identity) *Client {
	ctx, cancel := context.WithCancel(gw.ctx)
	return &Client{
		conn:     conn,
		gw:       gw,
		addr:     addr,
		identity: identity,
		send:     make(chan chat.Event, gw.cfg.SendBufferSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		limiter:  newRateLimiter(gw.cfg.RateLimit()),
		log:      gw.log.With("addr", addr, "user", identity),
	}
}

// Deliver implements hub.Sink. It never blocks: a full send buffer kicks
// the client, and the pumps then tear the session down.
func (c *Client) Deliver(evt chat.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	default:
		c.close(reasonSlowConsumer)
		return false
	}
}

// close signals both pumps to stop. The write pump sends the close frame
// and closes the connection, which ends the read pump.
func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
		c.cancel()
	})
}

// handleReadError logs the read failure at a level matching how expected
// it was.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "limit", c.gw.cfg.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("Client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("Connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Debug("WebSocket read ended", "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.gw.registry.Unregister(c.session)
		c.close("read ended")
		c.closeConnection()
		c.gw.untrack(c)
	}()

	c.conn.SetReadLimit(c.gw.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("Error setting read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if !c.limiter.allow() {
			cfg := c.gw.cfg.RateLimit()
			c.log.Warn("Rate limit exceeded; discarding frame", "burst", cfg.Burst, "interval", cfg.RefillInterval)
			continue
		}
		c.gw.dispatch(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case evt := <-c.send:
			if !c.writeEvent(evt) {
				c.close("write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("Error writing ping", "error", err)
				c.close("ping failed")
				return
			}
		case <-c.done:
			c.writeClose()
			return
		}
	}
}

func (c *Client) writeEvent(evt chat.Event) bool {
	data, err := chat.Encode(evt)
	if err != nil {
		c.log.Error("Error encoding event", "event", evt.Kind(), "error", err)
		return true
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing event", "event", evt.Kind(), "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeClose() {
	code := websocket.CloseNormalClosure
	switch c.reason {
	case reasonSlowConsumer:
		code = websocket.ClosePolicyViolation
	case reasonShutdown:
		code = websocket.CloseGoingAway
	}
	msg := websocket.FormatCloseMessage(code, c.reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing close message", "error", err)
		}
	}
	if c.reason == reasonSlowConsumer {
		c.log.Warn("Client kicked for slow consumption", "session", c.session)
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error closing connection", "error", err)
	}
}
