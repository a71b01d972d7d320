package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

// fsnotifySource implements Source on top of fsnotify. fsnotify reports
// paths rather than watch descriptors, so handles are assigned here and the
// inotify vocabulary is reconstructed from fsnotify operations. Move cookies
// are always zero.
type fsnotifySource struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger

	events chan notify.RawEvent
	errors chan error

	mu      sync.Mutex
	closed  bool
	next    notify.Handle
	paths   map[notify.Handle]string
	handles map[string]notify.Handle
	// removed holds watched directories whose removal was already
	// translated and which fsnotify will report a second time, once from
	// the directory itself and once from its parent.
	removed   map[string]struct{}
	synthetic []notify.RawEvent
	wake      chan struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newFsnotify(cfg Config, log logger.Logger) (Source, error) {
	fsw, err := fsnotify.NewBufferedWatcher(uint(cfg.BufferSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceInit, err)
	}

	s := &fsnotifySource{
		fsw:     fsw,
		logger:  log,
		events:  make(chan notify.RawEvent, cfg.BufferSize),
		errors:  make(chan error, 10),
		next:    1,
		paths:   make(map[notify.Handle]string),
		handles: make(map[string]notify.Handle),
		removed: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()

	log.Info("event source started", "buffer_size", cfg.BufferSize)
	return s, nil
}

// Watch implements Source.Watch. A path that is already watched does not
// get a fresh handle; fsnotify keys watches by path, so the existing handle
// is returned.
func (s *fsnotifySource) Watch(path string) (notify.Handle, error) {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if h, ok := s.handles[path]; ok {
		return h, nil
	}

	if err := s.fsw.Add(path); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWatchRegistration, path, err)
	}

	h := s.next
	s.next++
	s.paths[h] = path
	s.handles[path] = h
	delete(s.removed, path)

	s.logger.Trace("watch added", "path", path, "wd", h)
	return h, nil
}

// Unwatch implements Source.Unwatch. The terminal IGNORED event is queued
// and delivered from the event loop, as the kernel does.
func (s *fsnotifySource) Unwatch(h notify.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	path, ok := s.paths[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	s.forget(h, path)

	if err := s.fsw.Remove(path); err != nil {
		s.logger.Debug("fsnotify remove failed", "path", path, "error", err)
	}

	s.synthetic = append(s.synthetic, notify.RawEvent{Handle: h, Mask: notify.Ignored})
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Events implements Source.Events.
func (s *fsnotifySource) Events() <-chan notify.RawEvent {
	return s.events
}

// Errors implements Source.Errors.
func (s *fsnotifySource) Errors() <-chan error {
	return s.errors
}

// Close implements Source.Close.
func (s *fsnotifySource) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("stopping event source")
		close(s.done)
		s.wg.Wait()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.fsw.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close fsnotify watcher: %w", err)
		}

		close(s.events)
		close(s.errors)
		s.logger.Info("event source closed")
	})

	return s.closeErr
}

func (s *fsnotifySource) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			if !s.emit(s.translate(ev)) {
				return
			}

		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if !s.emit([]notify.RawEvent{{Handle: notify.NoHandle, Mask: notify.Overflow}}) {
					return
				}
				continue
			}
			s.report(err)

		case <-s.wake:
			s.mu.Lock()
			pending := s.synthetic
			s.synthetic = nil
			s.mu.Unlock()

			if !s.emit(pending) {
				return
			}
		}
	}
}

// emit delivers events in order. It returns false once the source is
// closing.
func (s *fsnotifySource) emit(events []notify.RawEvent) bool {
	for _, ev := range events {
		s.logger.Trace("raw event", "event", ev)
		select {
		case s.events <- ev:
		case <-s.done:
			return false
		}
	}
	return true
}

func (s *fsnotifySource) report(err error) {
	s.logger.Error("event source error", "error", err)
	select {
	case s.errors <- err:
	default:
		s.logger.Warn("error channel full, dropping error")
	}
}

// translate maps one fsnotify event onto the raw events inotify would have
// produced for the watched parent and, when the path itself is watched, for
// the path's own handle.
func (s *fsnotifySource) translate(ev fsnotify.Event) []notify.RawEvent {
	name := filepath.Clean(ev.Name)
	dir, base := filepath.Dir(name), filepath.Base(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, hasParent := s.handles[dir]
	self, isWatched := s.handles[name]

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if _, dup := s.removed[name]; dup {
			delete(s.removed, name)
			return nil
		}
	}

	var out []notify.RawEvent
	child := func(mask notify.Mask) {
		if hasParent {
			out = append(out, notify.RawEvent{Handle: parent, Mask: mask, Name: base})
		}
	}

	if ev.Has(fsnotify.Create) {
		mask := notify.Create
		if info, err := os.Lstat(name); err == nil && info.IsDir() {
			mask |= notify.IsDir
		}
		child(mask)
	}
	if ev.Has(fsnotify.Write) {
		child(notify.Modify)
	}
	if ev.Has(fsnotify.Chmod) {
		child(notify.Attrib)
	}

	if ev.Has(fsnotify.Remove) {
		if isWatched {
			child(notify.Delete | notify.IsDir)
			out = append(out,
				notify.RawEvent{Handle: self, Mask: notify.DeleteSelf},
				notify.RawEvent{Handle: self, Mask: notify.Ignored})
			s.forget(self, name)
			if hasParent {
				s.removed[name] = struct{}{}
			}
		} else {
			child(notify.Delete)
		}
	}

	if ev.Has(fsnotify.Rename) {
		switch {
		case isWatched && hasParent:
			child(notify.MovedFrom | notify.IsDir)
			s.removed[name] = struct{}{}
		case isWatched:
			out = append(out, notify.RawEvent{Handle: self, Mask: notify.MoveSelf})
		default:
			child(notify.MovedFrom)
		}
	}

	if len(out) == 0 {
		s.logger.Trace("fsnotify event outside watched directories", "event", ev.String())
	}
	return out
}

// forget drops the handle mapping. Callers hold s.mu.
func (s *fsnotifySource) forget(h notify.Handle, path string) {
	delete(s.paths, h)
	delete(s.handles, path)
}
