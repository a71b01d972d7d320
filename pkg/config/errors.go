package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoRoot is returned when no directory to monitor is specified.
	ErrNoRoot = errors.New("no directory to monitor specified")

	// ErrInvalidBackend is returned when the event source backend is not recognized.
	ErrInvalidBackend = errors.New("invalid backend: must be inotify or fsnotify")

	// ErrInvalidBufferSize is returned when the event buffer size is <= 0.
	ErrInvalidBufferSize = errors.New("invalid buffer size: must be > 0")

	// ErrInvalidPort is returned when the port is outside 1..65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidWriteTimeout is returned when the write timeout is <= 0.
	ErrInvalidWriteTimeout = errors.New("invalid write timeout: must be > 0")

	// ErrInvalidShutdownTimeout is returned when the shutdown timeout is <= 0.
	ErrInvalidShutdownTimeout = errors.New("invalid shutdown timeout: must be > 0")

	// ErrInvalidMessageSize is returned when the maximum message size is <= 0.
	ErrInvalidMessageSize = errors.New("invalid max message size: must be > 0")

	// ErrNoDBPath is returned when statistics are enabled without a database path.
	ErrNoDBPath = errors.New("no statistics database path specified")

	// ErrInvalidFlushInterval is returned when the flush interval is <= 0.
	ErrInvalidFlushInterval = errors.New("invalid flush interval: must be > 0")

	// ErrInvalidMaxDirectories is returned when max directories is <= 0.
	ErrInvalidMaxDirectories = errors.New("invalid max directories: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be trace, debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
