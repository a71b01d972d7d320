package server

import "errors"

var (
	// ErrListen is returned when the listening socket cannot be opened.
	ErrListen = errors.New("failed to listen")

	// ErrServe is returned when the HTTP server stops unexpectedly.
	ErrServe = errors.New("http server failed")
)
