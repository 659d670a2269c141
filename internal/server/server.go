package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server, log *slog.Logger) error {
	log.Info("Server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active requests.
// Hijacked WebSocket connections are not covered; Gateway.Shutdown closes those.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
