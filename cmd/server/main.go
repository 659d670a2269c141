package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/hub"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/relay"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	registry := hub.NewRegistry(logger)
	router := hub.NewRouter(registry)
	gw := server.NewGateway(cfg, server.Deps{
		Registry: registry,
		Router:   router,
		Presence: presence.NewBroadcaster(registry, logger),
		Relay:    relay.New(router, storage.NewBadgerStore(db, logger), logger, relay.WithHistoryLimit(cfg.HistoryLimit)),
		Verifier: auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer),
	}, logger)

	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(gw))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	code, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		code, runErr = exitRuntime, err
	}

	// Connections first so every client sees a going-away close, then the
	// listener.
	if err := gw.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("Gateway shutdown incomplete", "error", err)
	}
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil && runErr == nil {
		return exitRuntime, err
	}
	return code, runErr
}
