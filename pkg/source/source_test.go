package source

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

func backends(t *testing.T) []string {
	t.Helper()
	if runtime.GOOS == "linux" {
		return []string{BackendInotify, BackendFsnotify}
	}
	return []string{BackendFsnotify}
}

// waitFor reads events until one matches or the timeout expires.
func waitFor(t *testing.T, src Source, match func(notify.RawEvent) bool) notify.RawEvent {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(ev) {
				return ev
			}
		case err := <-src.Errors():
			t.Fatalf("source error: %v", err)
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestNewDefaults(t *testing.T) {
	src, err := New(Config{}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "kqueue"}, logger.Noop())
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("New() error = %v, want ErrUnsupportedBackend", err)
	}
}

func TestValidBackend(t *testing.T) {
	if !ValidBackend(BackendInotify) || !ValidBackend(BackendFsnotify) {
		t.Error("known backends reported invalid")
	}
	if ValidBackend("polling") {
		t.Error("ValidBackend(polling) = true")
	}
}

func TestCreateReported(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			src, err := New(Config{Backend: backend}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer src.Close() // nolint:errcheck

			h, err := src.Watch(dir)
			if err != nil {
				t.Fatalf("Watch() error = %v", err)
			}

			if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0600); err != nil {
				t.Fatal(err)
			}

			ev := waitFor(t, src, func(ev notify.RawEvent) bool {
				return ev.Mask.Has(notify.Create)
			})
			if ev.Handle != h {
				t.Errorf("Handle = %d, want %d", ev.Handle, h)
			}
			if ev.Name != "a.txt" {
				t.Errorf("Name = %q, want a.txt", ev.Name)
			}
			if ev.Mask.Has(notify.IsDir) {
				t.Error("file create carries IN_ISDIR")
			}
		})
	}
}

func TestDirectoryCreateHasIsDir(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			src, err := New(Config{Backend: backend}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer src.Close() // nolint:errcheck

			if _, err := src.Watch(dir); err != nil {
				t.Fatalf("Watch() error = %v", err)
			}
			if err := os.Mkdir(filepath.Join(dir, "sub"), 0700); err != nil {
				t.Fatal(err)
			}

			ev := waitFor(t, src, func(ev notify.RawEvent) bool {
				return ev.Mask.Has(notify.Create)
			})
			if ev.Mask != notify.Create|notify.IsDir {
				t.Errorf("Mask = %v, want IN_CREATE|IN_ISDIR", ev.Mask)
			}
		})
	}
}

func TestUnwatchDeliversIgnored(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			src, err := New(Config{Backend: backend}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer src.Close() // nolint:errcheck

			h, err := src.Watch(t.TempDir())
			if err != nil {
				t.Fatalf("Watch() error = %v", err)
			}
			if err := src.Unwatch(h); err != nil {
				t.Fatalf("Unwatch() error = %v", err)
			}

			waitFor(t, src, func(ev notify.RawEvent) bool {
				return ev.Handle == h && ev.Mask.Has(notify.Ignored)
			})

			if err := src.Unwatch(h); !errors.Is(err, ErrUnknownHandle) {
				t.Errorf("second Unwatch() error = %v, want ErrUnknownHandle", err)
			}
		})
	}
}

func TestWatchMissingPath(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			src, err := New(Config{Backend: backend}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer src.Close() // nolint:errcheck

			_, err = src.Watch(filepath.Join(t.TempDir(), "missing"))
			if !errors.Is(err, ErrWatchRegistration) {
				t.Errorf("Watch() error = %v, want ErrWatchRegistration", err)
			}
		})
	}
}

func TestFsnotifyWatchTwiceKeepsHandle(t *testing.T) {
	src, err := New(Config{Backend: BackendFsnotify}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close() // nolint:errcheck

	dir := t.TempDir()
	first, err := src.Watch(dir)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	second, err := src.Watch(dir + string(filepath.Separator))
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if first != second {
		t.Errorf("Watch() twice = %d, %d; want the same handle", first, second)
	}
}

func TestCloseIdempotent(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			src, err := New(Config{Backend: backend}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			if err := src.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if err := src.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}

			if _, ok := <-src.Events(); ok {
				t.Error("Events() not closed after Close()")
			}
			if _, err := src.Watch(t.TempDir()); !errors.Is(err, ErrClosed) {
				t.Errorf("Watch() after Close() error = %v, want ErrClosed", err)
			}
			if err := src.Unwatch(1); !errors.Is(err, ErrClosed) {
				t.Errorf("Unwatch() after Close() error = %v, want ErrClosed", err)
			}
		})
	}
}

func TestCloseUnblocksFullChannel(t *testing.T) {
	for _, backend := range backends(t) {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()

			src, err := New(Config{Backend: backend, BufferSize: 1}, logger.Noop())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if _, err := src.Watch(dir); err != nil {
				t.Fatalf("Watch() error = %v", err)
			}

			for i := 0; i < 20; i++ {
				name := filepath.Join(dir, "f"+string(rune('a'+i)))
				if err := os.WriteFile(name, nil, 0600); err != nil {
					t.Fatal(err)
				}
			}
			time.Sleep(50 * time.Millisecond)

			done := make(chan error, 1)
			go func() { done <- src.Close() }()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Close() blocked with a full event channel")
			}
		})
	}
}
