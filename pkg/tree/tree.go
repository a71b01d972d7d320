package tree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/source"
)

// Tree watches a directory tree through a source.Source.
//
// Tree implements notify.Provider.
type Tree struct {
	root   string
	skip   []string
	src    source.Source
	logger logger.Logger

	// Owned by the Run goroutine after New returns.
	byHandle map[notify.Handle]*node
	byPath   map[string]*node
	pending  map[notify.Handle]*node
	gen      uint64

	unmounting int

	running atomic.Bool

	directories    atomic.Int64
	pendingRemoval atomic.Int64
	pendingUnmount atomic.Int64
	published      atomic.Uint64
	suppressed     atomic.Uint64
}

// New resolves the root, enumerates it and registers the initial watches.
//
// Returns an error wrapping ErrRootWatch if the root is not a directory or
// cannot be watched. Failures below the root are logged and skipped.
func New(cfg Config, src source.Source, log logger.Logger) (*Tree, error) {
	root, err := resolveRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootWatch, err)
	}

	// A symlinked root is watched through its target; the walk does not
	// follow links.
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootWatch, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootWatch, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootWatch, root)
	}

	t := &Tree{
		root:     root,
		skip:     append([]string(nil), cfg.Skip...),
		src:      src,
		logger:   log.Named("tree").With("root", root),
		byHandle: make(map[notify.Handle]*node),
		byPath:   make(map[string]*node),
		pending:  make(map[notify.Handle]*node),
	}

	t.logger.Info("indexing directory tree", "skip", t.skip)
	if _, err := t.scan(root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootWatch, err)
	}
	if _, ok := t.byPath[root]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootWatch, root)
	}
	t.updateGauges()

	t.logger.Info("start monitoring", "directories", len(t.byHandle))
	return t, nil
}

// Root returns the absolute root path.
func (t *Tree) Root() string {
	return t.root
}

// Run consumes source events and passes the tree's events to sink, in
// source order, on the calling goroutine. It returns nil when ctx is done or
// the source is closed, and an error wrapping ErrDiverged if a watched
// directory can no longer be placed below the root.
func (t *Tree) Run(ctx context.Context, sink notify.Sink) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer t.running.Store(false)

	events := t.src.Events()
	errs := t.src.Errors()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("context done, stopping")
			return nil

		case ev, ok := <-events:
			if !ok {
				t.logger.Debug("event source closed, stopping")
				return nil
			}
			if err := t.handle(ev, sink); err != nil {
				t.logger.Error("internal consistency fault", "event", ev, "error", err)
				return err
			}
			t.updateGauges()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			t.logger.Warn("event source reported an error", "error", err)
		}
	}
}

// Stats returns a snapshot of the tree. It is safe to call from any
// goroutine.
func (t *Tree) Stats() Stats {
	return Stats{
		Directories:    int(t.directories.Load()),
		PendingRemoval: int(t.pendingRemoval.Load()),
		PendingUnmount: int(t.pendingUnmount.Load()),
		Published:      t.published.Load(),
		Suppressed:     t.suppressed.Load(),
	}
}

func (t *Tree) handle(ev notify.RawEvent, sink notify.Sink) error {
	t.logger.Trace("event", "event", ev)

	if ev.Mask.Has(notify.Overflow) {
		t.logger.Warn("event queue overflow, events were lost")
		t.publish(sink, ev, "")
		return nil
	}

	n, ok := t.byHandle[ev.Handle]
	if !ok {
		// Leftovers of a watch the tree already forgot.
		if ev.Mask == notify.Ignored {
			t.logger.Debug("ignore event for unknown watch", "event", ev)
		} else {
			t.logger.Warn("ignore event for unknown watch", "event", ev)
		}
		return nil
	}

	rel, err := relativePath(t.root, n.path)
	if err != nil {
		return err
	}

	switch ev.Mask {
	case notify.MovedFrom | notify.IsDir:
		t.retire(filepath.Join(n.path, ev.Name))

	case notify.Delete | notify.IsDir:
		if child, ok := t.byPath[filepath.Join(n.path, ev.Name)]; ok && child.deletedAt == 0 {
			child.deletedAt = t.gen
		}

	case notify.Unmount:
		if n.state == stateActive {
			n.state = statePendingUnmount
			t.unmounting++
		}
		if rel != "." {
			t.logger.Debug("ignore unmount below root", "path", n.path)
			t.suppressed.Add(1)
			return nil
		}

	case notify.Create | notify.IsDir, notify.MovedTo | notify.IsDir:
		if !t.retired(n) {
			child := filepath.Join(n.path, ev.Name)
			if _, err := t.scan(child); err != nil {
				t.logger.Debug("new directory vanished before it was indexed",
					"path", child,
					"error", err)
			}
		}

	case notify.Ignored:
		t.complete(n, ev, rel, sink)
		return nil
	}

	if t.retired(n) {
		t.logger.Debug("ignore event inside removed subtree",
			"path", n.path,
			"name", ev.Name,
			"mask", ev.Mask)
		t.suppressed.Add(1)
		return nil
	}

	t.publish(sink, ev, rel)
	return nil
}

// retire starts the removal of a directory that left the tree. Its events
// and those of its subtree are suppressed until the source confirms the
// removal with an ignored event.
func (t *Tree) retire(path string) {
	n, ok := t.byPath[path]
	if !ok || n.state != stateActive {
		t.logger.Debug("moved directory is not watched", "path", path)
		return
	}

	t.logger.Debug("removing watch", "path", path, "wd", n.handle)
	if err := t.src.Unwatch(n.handle); err != nil {
		// No confirmation will come; drop the subtree right away.
		t.logger.Warn("failed to remove watch", "path", path, "wd", n.handle, "error", err)
		t.forget(n)
		t.sweep(n, t.gen)
		return
	}

	n.state = statePendingRemoval
	n.retiredAt = t.gen
	t.pending[n.handle] = n
	if t.byPath[path] == n {
		delete(t.byPath, path)
	}
}

// complete handles the source's confirmation that a watch is gone.
func (t *Tree) complete(n *node, ev notify.RawEvent, rel string, sink notify.Sink) {
	if n.state == statePendingUnmount {
		t.forget(n)
		if rel == "." {
			t.logger.Warn("root file system unmounted")
			t.publish(sink, ev, rel)
			return
		}
		t.logger.Debug("ignore completion of unmounted directory", "path", n.path)
		t.suppressed.Add(1)
		return
	}

	// Checked before n leaves the pending set: n itself being pending is
	// the normal case and its confirmation is published.
	inside := t.insidePending(n)

	bound := t.gen
	switch {
	case n.state == statePendingRemoval:
		bound = n.retiredAt
	case n.deletedAt != 0:
		bound = n.deletedAt
	}
	// The path may already belong to a directory created in its place.
	if cur, ok := t.byPath[n.path]; ok && cur != n && cur.gen <= bound {
		bound = cur.gen - 1
	}

	t.logger.Debug("watch removed, cleaning subtree", "path", n.path, "wd", n.handle)
	t.forget(n)
	t.sweep(n, bound)

	if inside {
		t.logger.Debug("ignore completion inside removed subtree", "path", n.path)
		t.suppressed.Add(1)
		return
	}

	if rel == "." {
		t.logger.Warn("root directory is no longer watched")
	}
	t.publish(sink, ev, rel)
}

// sweep forgets every node below parent registered no later than bound,
// removing its watch first.
func (t *Tree) sweep(parent *node, bound uint64) {
	for h, n := range t.byHandle {
		if n.gen > bound || !within(n.path, parent.path) {
			continue
		}

		t.logger.Debug("cleaning stale watch", "path", n.path, "wd", h)
		if n.state != statePendingRemoval {
			if err := t.src.Unwatch(h); err != nil && !errors.Is(err, source.ErrUnknownHandle) {
				t.logger.Debug("failed to remove stale watch", "path", n.path, "error", err)
			}
		}
		t.forget(n)
	}
}

// forget drops n from every index.
func (t *Tree) forget(n *node) {
	if n.state == statePendingUnmount {
		t.unmounting--
	}
	delete(t.byHandle, n.handle)
	delete(t.pending, n.handle)
	if t.byPath[n.path] == n {
		delete(t.byPath, n.path)
	}
}

// retired reports whether events of n must no longer be published.
func (t *Tree) retired(n *node) bool {
	return n.state == statePendingRemoval || t.insidePending(n)
}

// insidePending reports whether n lies in another node's subtree that is
// being removed. A directory registered after the removal began is not
// inside it.
func (t *Tree) insidePending(n *node) bool {
	for _, p := range t.pending {
		if p != n && n.gen <= p.retiredAt && within(n.path, p.path) {
			return true
		}
	}
	return false
}

func (t *Tree) publish(sink notify.Sink, ev notify.RawEvent, rel string) {
	out := notify.Event{
		Path:   rel,
		Name:   ev.Name,
		Mask:   ev.Mask,
		Cookie: ev.Cookie,
	}

	t.logger.Debug("publish event", "path", rel, "name", ev.Name, "mask", ev.Mask)
	t.published.Add(1)
	sink(out)
}

func (t *Tree) updateGauges() {
	t.directories.Store(int64(len(t.byHandle)))
	t.pendingRemoval.Store(int64(len(t.pending)))
	t.pendingUnmount.Store(int64(t.unmounting))
}
