// Package tree turns the flat per-directory stream of a source.Source into
// one event stream for a whole directory tree.
//
// The tree registers a watch for the root and every directory below it,
// follows directories as they are created, moved in, moved out and removed,
// and reports each event with a path relative to the root. All tree state
// is owned by the goroutine running Run; it is never locked.
//
// Example usage:
//
//	src, _ := source.New(source.Config{}, log)
//	t, err := tree.New(tree.Config{Root: "/srv", Skip: []string{".git"}}, src, log)
//	if err != nil {
//	    return err
//	}
//	err = t.Run(ctx, func(ev notify.Event) {
//	    fmt.Println(ev)
//	})
package tree

import "github.com/0xmhha/treewatch/pkg/notify"

// Config contains watch tree configuration.
type Config struct {
	// Root is the directory to watch. Relative paths are resolved against
	// the working directory.
	Root string

	// Skip lists substring patterns. A directory below the root whose
	// absolute path contains any of them is not watched, nor is anything
	// beneath it.
	Skip []string
}

// Stats is a point-in-time view of the tree.
type Stats struct {
	// Directories is the number of registered watches.
	Directories int `json:"directories"`

	// PendingRemoval counts directories moved out of the tree whose watch
	// removal is not yet confirmed.
	PendingRemoval int `json:"pending_removal"`

	// PendingUnmount counts directories whose file system was unmounted.
	PendingUnmount int `json:"pending_unmount"`

	// Published is the number of events handed to the sink.
	Published uint64 `json:"published"`

	// Suppressed is the number of events dropped as teardown artifacts.
	Suppressed uint64 `json:"suppressed"`
}

type state int

const (
	stateActive state = iota
	statePendingRemoval
	statePendingUnmount
)

func (s state) String() string {
	switch s {
	case stateActive:
		return "active"
	case statePendingRemoval:
		return "pending-removal"
	case statePendingUnmount:
		return "pending-unmount"
	default:
		return "unknown"
	}
}

// node is one watched directory.
type node struct {
	path   string
	handle notify.Handle
	state  state

	// gen orders registrations. A node pending removal records in
	// retiredAt the last generation issued before the removal began, so
	// the cleanup sweep leaves alone directories registered afterwards
	// under the same path.
	gen       uint64
	retiredAt uint64

	// deletedAt is the last generation issued before the parent reported
	// the directory deleted. Zero while it exists.
	deletedAt uint64
}
