// Package server exposes a hub.Hub over WebSocket.
//
// GET / upgrades to a WebSocket session. The session joins the hub with an
// empty mask and reads text frames; the only command understood is
//
//	{"command":"subscribe","mask":<integer>}
//
// which replaces the session's mask. Published events are written as text
// frames, one JSON object per frame. GET /stats serves a JSON snapshot of
// the service statistics and GET /healthz reports liveness.
package server

import "time"

// Config contains server configuration.
type Config struct {
	// WriteTimeout bounds a single frame write.
	// Default: 10s.
	WriteTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10s.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds the graceful stop of the listener.
	// Default: 5s.
	ShutdownTimeout time.Duration

	// MaxMessageSize limits inbound frames.
	// Default: 4096 bytes.
	MaxMessageSize int64

	// AllowedOrigins restricts the Origin header of upgrade requests.
	// Empty allows any origin.
	AllowedOrigins []string
}

// StatsFunc returns a JSON-encodable statistics snapshot.
type StatsFunc func() interface{}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		MaxMessageSize:    4096,
	}
}
