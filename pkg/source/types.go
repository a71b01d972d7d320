// Package source delivers raw change events for a set of watched
// directories.
//
// A Source owns one OS watch group and one background goroutine. The
// goroutine is the single producer of the Events channel; events arrive in
// the order the operating system reported them. Unwatch is asynchronous:
// the watch is gone only once the matching notify.Ignored event has been
// received.
//
// Example usage:
//
//	src, err := source.New(source.Config{}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer src.Close()
//
//	wd, err := src.Watch("/srv/data")
//	for ev := range src.Events() {
//	    fmt.Println(ev)
//	}
package source

import "github.com/0xmhha/treewatch/pkg/notify"

// Backend names.
const (
	BackendInotify  = "inotify"
	BackendFsnotify = "fsnotify"
)

// Source produces raw change events for watched directories.
type Source interface {
	// Watch registers a directory and returns its handle.
	//
	// Returns an error wrapping ErrWatchRegistration if the path is missing,
	// inaccessible, or the watch limit is exhausted.
	Watch(path string) (notify.Handle, error)

	// Unwatch deregisters a handle. The completion is reported later as a
	// notify.Ignored event for the same handle.
	Unwatch(h notify.Handle) error

	// Events returns the channel of raw events.
	//
	// The channel is closed when the source is closed.
	Events() <-chan notify.RawEvent

	// Errors returns the channel of non-fatal read errors.
	//
	// The channel is closed when the source is closed.
	Errors() <-chan error

	// Close stops the background goroutine, waits for it to exit and
	// releases the OS resources. No event is delivered after Close returns.
	// Close is safe to call more than once and from any goroutine.
	Close() error
}

// Config contains event source configuration.
type Config struct {
	// Backend selects the OS facility ("inotify" or "fsnotify").
	// Default: inotify on Linux, fsnotify elsewhere.
	Backend string

	// BufferSize is the capacity of the Events channel.
	// Default: 1024.
	BufferSize int
}
