package service

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid service configuration")

	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("service is already running")

	// ErrSourceStopped is returned by Run when the event source stops
	// delivering events on its own.
	ErrSourceStopped = errors.New("event source stopped")
)
