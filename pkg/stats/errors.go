package stats

import "errors"

var (
	// ErrNoSnapshot is returned by Load when nothing has been saved yet.
	ErrNoSnapshot = errors.New("no saved statistics")

	// ErrStoreLocked is returned by Open when another process holds the
	// database.
	ErrStoreLocked = errors.New("statistics database is in use")

	// ErrReadOnly is returned by Save on a read-only store.
	ErrReadOnly = errors.New("statistics database is read-only")
)
