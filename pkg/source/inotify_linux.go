//go:build linux

package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = BackendInotify

// readBufferSize holds a few hundred events with short names per read.
const readBufferSize = 64 * 1024

var errStopped = errors.New("stopped")

// inotifySource implements Source with inotify(7). A second descriptor, an
// eventfd, is polled together with the inotify descriptor so that Close can
// interrupt a blocked poll.
type inotifySource struct {
	fd     int
	efd    int
	logger logger.Logger

	events chan notify.RawEvent
	errors chan error

	mu     sync.RWMutex
	closed bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newInotify(cfg Config, log logger.Logger) (Source, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("%w: inotify_init1: %w", ErrSourceInit, err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd) // nolint:errcheck
		return nil, fmt.Errorf("%w: eventfd: %w", ErrSourceInit, err)
	}

	s := &inotifySource{
		fd:     fd,
		efd:    efd,
		logger: log,
		events: make(chan notify.RawEvent, cfg.BufferSize),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()

	log.Info("event source started", "buffer_size", cfg.BufferSize)
	return s, nil
}

// Watch implements Source.Watch.
func (s *inotifySource) Watch(path string) (notify.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	wd, err := unix.InotifyAddWatch(s.fd, path, unix.IN_ALL_EVENTS)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWatchRegistration, path, err)
	}

	s.logger.Trace("watch added", "path", path, "wd", wd)
	return notify.Handle(wd), nil
}

// Unwatch implements Source.Unwatch.
func (s *inotifySource) Unwatch(h notify.Handle) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := unix.InotifyRmWatch(s.fd, uint32(h)); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
		}
		return fmt.Errorf("inotify_rm_watch %d: %w", h, err)
	}

	s.logger.Trace("watch removal requested", "wd", h)
	return nil
}

// Events implements Source.Events.
func (s *inotifySource) Events() <-chan notify.RawEvent {
	return s.events
}

// Errors implements Source.Errors.
func (s *inotifySource) Errors() <-chan error {
	return s.errors
}

// Close implements Source.Close.
func (s *inotifySource) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("stopping event source")
		close(s.done)

		var one [8]byte
		binary.NativeEndian.PutUint64(one[:], 1)
		if _, err := unix.Write(s.efd, one[:]); err != nil {
			s.logger.Error("failed to signal event loop", "error", err)
		}

		s.wg.Wait()

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := unix.Close(s.fd); err != nil {
			s.closeErr = fmt.Errorf("failed to close inotify descriptor: %w", err)
		}
		if err := unix.Close(s.efd); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to close eventfd: %w", err)
		}

		close(s.events)
		close(s.errors)
		s.logger.Info("event source closed")
	})

	return s.closeErr
}

// loop waits for either inotify data or the exit signal.
func (s *inotifySource) loop() {
	defer s.wg.Done()

	fds := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.efd), Events: unix.POLLIN},
	}
	buf := make([]byte, readBufferSize)

	s.logger.Debug("listening for events")
	for {
		n, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.report(fmt.Errorf("poll failed: %w", err))
			return
		}
		if n == 0 {
			continue
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			s.logger.Debug("exit signal received")
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			s.logger.Warn("unexpected poll result",
				"inotify_revents", fds[0].Revents,
				"eventfd_revents", fds[1].Revents)
			continue
		}

		if err := s.drain(buf); err != nil {
			if errors.Is(err, errStopped) {
				return
			}
			s.report(err)
			return
		}
	}
}

// drain reads until the non-blocking descriptor reports EAGAIN.
func (s *inotifySource) drain(buf []byte) error {
	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("failed to read inotify descriptor: %w", err)
		}
		if n <= 0 {
			return nil
		}

		events, decodeErr := decodeEvents(buf[:n])
		for _, ev := range events {
			s.logger.Trace("raw event", "event", ev)
			select {
			case s.events <- ev:
			case <-s.done:
				return errStopped
			}
		}
		if decodeErr != nil {
			s.report(decodeErr)
		}
	}
}

func (s *inotifySource) report(err error) {
	s.logger.Error("event source error", "error", err)
	select {
	case s.errors <- err:
	default:
		s.logger.Warn("error channel full, dropping error")
	}
}

// decodeEvents splits a read buffer into inotify_event records. Names are
// NUL-padded by the kernel.
func decodeEvents(buf []byte) ([]notify.RawEvent, error) {
	events := make([]notify.RawEvent, 0, len(buf)/(unix.SizeofInotifyEvent+16))

	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset])) // nolint:gosec
		end := offset + unix.SizeofInotifyEvent + int(raw.Len)
		if end > len(buf) {
			return events, fmt.Errorf("truncated inotify event at offset %d", offset)
		}

		var name string
		if raw.Len > 0 {
			name = string(bytes.TrimRight(buf[offset+unix.SizeofInotifyEvent:end], "\x00"))
		}

		events = append(events, notify.RawEvent{
			Handle: notify.Handle(raw.Wd),
			Mask:   notify.Mask(raw.Mask),
			Cookie: raw.Cookie,
			Name:   name,
		})
		offset = end
	}

	if offset != len(buf) {
		return events, fmt.Errorf("trailing %d bytes in inotify buffer", len(buf)-offset)
	}
	return events, nil
}
