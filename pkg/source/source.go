package source

import (
	"fmt"
	"strings"

	"github.com/0xmhha/treewatch/pkg/logger"
)

const defaultBufferSize = 1024

// New opens an event source with the configured backend and starts its
// background goroutine.
//
// Returns an error wrapping ErrSourceInit if the OS resource cannot be
// allocated, or ErrUnsupportedBackend for an unknown backend.
func New(cfg Config, log logger.Logger) (Source, error) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	log = log.Named("source").With("backend", cfg.Backend)

	switch strings.ToLower(cfg.Backend) {
	case BackendInotify:
		return newInotify(cfg, log)
	case BackendFsnotify:
		return newFsnotify(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}

// ValidBackend reports whether name is a known backend.
func ValidBackend(name string) bool {
	switch strings.ToLower(name) {
	case "", BackendInotify, BackendFsnotify:
		return true
	}
	return false
}
