//go:build !linux

package source

import (
	"fmt"

	"github.com/0xmhha/treewatch/pkg/logger"
)

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = BackendFsnotify

func newInotify(_ Config, _ logger.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: inotify is only available on linux", ErrUnsupportedBackend)
}
