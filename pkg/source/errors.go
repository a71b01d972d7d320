package source

import "errors"

// Common errors returned by event sources.
var (
	// ErrSourceInit is returned when the OS watch group cannot be created.
	ErrSourceInit = errors.New("failed to initialize event source")

	// ErrWatchRegistration is returned when a path cannot be watched.
	ErrWatchRegistration = errors.New("failed to register watch")

	// ErrUnknownHandle is returned by Unwatch for a handle that is not
	// registered.
	ErrUnknownHandle = errors.New("unknown watch handle")

	// ErrClosed is returned when using a closed source.
	ErrClosed = errors.New("event source is closed")

	// ErrUnsupportedBackend is returned for a backend that is unknown or not
	// available on this platform.
	ErrUnsupportedBackend = errors.New("unsupported event source backend")
)
