package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes:
// the health check, the WebSocket endpoint and the relay and presence API.
func SetupRoutes(g *Gateway) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("POST /api/messages", g.handleSendMessage)
	mux.HandleFunc("GET /api/messages", g.handleHistory)
	mux.HandleFunc("POST /api/messages/read", g.handleMarkRead)
	mux.HandleFunc("GET /api/presence", g.handlePresence)
	return mux
}
