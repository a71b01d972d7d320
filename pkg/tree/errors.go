package tree

import "errors"

var (
	// ErrRootWatch is returned by New when the root cannot be watched.
	ErrRootWatch = errors.New("failed to watch root directory")

	// ErrDiverged is returned by Run when a watched directory can no
	// longer be expressed relative to the root. The tree state no longer
	// matches the file system.
	ErrDiverged = errors.New("watch tree diverged from file system")

	// ErrAlreadyRunning is returned by a second concurrent call to Run.
	ErrAlreadyRunning = errors.New("watch tree is already running")
)
