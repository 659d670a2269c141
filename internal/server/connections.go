package server

import (
	"context"
	"time"
)

// pumpsPerClient is the number of goroutines each session runs.
const pumpsPerClient = 2

// track records a live client so Shutdown can reach it. It refuses new
// clients once shutdown started. The pump goroutines are counted here,
// under the same lock that sets closing, so Shutdown never waits on a
// group that can still grow.
func (g *Gateway) track(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closing {
		return false
	}
	g.wg.Add(pumpsPerClient)
	g.clients[c] = struct{}{}
	g.log.Debug("Client connected", "addr", c.addr, "clients", len(g.clients))
	return true
}

func (g *Gateway) untrack(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.clients[c]; !ok {
		return
	}
	delete(g.clients, c)
	g.log.Debug("Client disconnected", "addr", c.addr, "clients", len(g.clients))
}

// abandon drops a tracked client whose pumps never started.
func (g *Gateway) abandon(c *Client) {
	g.untrack(c)
	g.wg.Add(-pumpsPerClient)
}

// ClientCount returns the number of live connections.
func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.clients)
}

// Shutdown rejects new sessions, closes every live connection and waits for
// the pump goroutines to finish or for timeout to elapse.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.log.Info("Initiating gateway shutdown...")

	g.registry.Close()

	g.mu.Lock()
	g.closing = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.close(reasonShutdown)
	}
	g.cancel()
	g.log.Info("Closing client connections", "count", len(clients))

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.log.Info("Gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		g.log.Warn("Gateway shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}
