// Package server implements the connection gateway of roomchat.
//
// The gateway upgrades WebSocket requests, authenticates them with an auth
// handshake, registers one hub session per connection and runs a read and
// a write pump for it. Inbound frames become router and relay operations;
// fan-out reaches each connection through its bounded send buffer. The
// package also serves the health check and the relay and presence HTTP API.
package server
