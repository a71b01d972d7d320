package tree

import (
	"fmt"
	"sync"

	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/source"
)

// fakeSource hands out handles without touching the OS. Events are pushed
// by the test.
type fakeSource struct {
	mu        sync.Mutex
	next      notify.Handle
	handles   map[string]notify.Handle
	paths     map[notify.Handle]string
	unwatched []notify.Handle
	fail      map[string]bool
	reuse     map[string]notify.Handle

	events chan notify.RawEvent
	errors chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		next:    1,
		handles: make(map[string]notify.Handle),
		paths:   make(map[notify.Handle]string),
		fail:    make(map[string]bool),
		reuse:   make(map[string]notify.Handle),
		events:  make(chan notify.RawEvent, 64),
		errors:  make(chan error, 1),
	}
}

func (f *fakeSource) Watch(path string) (notify.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail[path] {
		return 0, fmt.Errorf("%w: %s: permission denied", source.ErrWatchRegistration, path)
	}

	h, ok := f.reuse[path]
	if !ok {
		h = f.next
		f.next++
	}
	f.handles[path] = h
	f.paths[h] = path
	return h, nil
}

func (f *fakeSource) Unwatch(h notify.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, ok := f.paths[h]
	if !ok {
		return fmt.Errorf("%w: %d", source.ErrUnknownHandle, h)
	}
	delete(f.paths, h)
	if f.handles[path] == h {
		delete(f.handles, path)
	}
	f.unwatched = append(f.unwatched, h)
	return nil
}

func (f *fakeSource) Events() <-chan notify.RawEvent { return f.events }
func (f *fakeSource) Errors() <-chan error           { return f.errors }
func (f *fakeSource) Close() error                   { return nil }

// handle returns the most recent handle issued for path.
func (f *fakeSource) handle(path string) notify.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[path]
}

func (f *fakeSource) removed() []notify.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Handle(nil), f.unwatched...)
}

// recorder collects published events.
type recorder struct {
	events []notify.Event
}

func (r *recorder) sink(ev notify.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) take() []notify.Event {
	out := r.events
	r.events = nil
	return out
}
