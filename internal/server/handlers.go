package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

type errorResponse struct {
	Error string `json:"error"`
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

// authenticateRequest verifies the bearer credential of a plain HTTP call
// with the same priority rules as the WebSocket handshake.
func (g *Gateway) authenticateRequest(r *http.Request) (chat.Identity, error) {
	creds := auth.FromRequest(r, g.cfg.TokenCookie)
	class := auth.ParseClientClass(r.Header.Get(auth.ClientClassHeader))
	return g.verifier.Verify(r.Context(), creds.Resolve(class))
}

// handleSendMessage serves POST /api/messages.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sender, err := g.authenticateRequest(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	var body chat.SendMessage
	if err := g.decodeBody(w, r, &body); err != nil {
		g.writeError(w, err)
		return
	}
	msg, err := g.relay.SendMessage(r.Context(), sender, body.ReceiverID, body.Message)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleMarkRead serves POST /api/messages/read.
func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	reader, err := g.authenticateRequest(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	var body chat.MarkRead
	if err := g.decodeBody(w, r, &body); err != nil {
		g.writeError(w, err)
		return
	}
	evt, err := g.relay.MarkRead(r.Context(), reader, body.PeerID)
	if err != nil {
		g.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// handleHistory serves GET /api/messages?peerId=.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	self, err := g.authenticateRequest(r)
	if err != nil {
		g.writeError(w, err)
		return
	}
	peer := chat.Identity(r.URL.Query().Get("peerId"))
	if peer == "" {
		g.writeError(w, fmt.Errorf("%w: peerId is required", chat.ErrProtocol))
		return
	}
	history, err := g.relay.History(r.Context(), self, peer)
	if err != nil {
		g.writeError(w, err)
		return
	}
	if history == nil {
		history = []chat.NewMessage{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handlePresence serves GET /api/presence?userId=a&userId=b.
func (g *Gateway) handlePresence(w http.ResponseWriter, r *http.Request) {
	if _, err := g.authenticateRequest(r); err != nil {
		g.writeError(w, err)
		return
	}
	ids := r.URL.Query()["userId"]
	identities := make([]chat.Identity, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			identities = append(identities, chat.Identity(id))
		}
	}
	writeJSON(w, http.StatusOK, g.presence.Lookup(identities...))
}

func (g *Gateway) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, g.cfg.MaxMessageSize))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", chat.ErrProtocol, err)
	}
	return chat.Validate(dst)
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, chat.ErrProtocol):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		g.log.Error("Request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
