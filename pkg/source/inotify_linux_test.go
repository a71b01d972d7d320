//go:build linux

package source

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
)

// encodeEvent lays out one inotify_event the way the kernel does, with the
// name padded to padTo bytes.
func encodeEvent(wd int32, mask, cookie uint32, name string, padTo int) []byte {
	nameLen := 0
	if name != "" {
		nameLen = padTo
	}
	buf := make([]byte, unix.SizeofInotifyEvent+nameLen)
	raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[0]))
	raw.Wd = wd
	raw.Mask = mask
	raw.Cookie = cookie
	raw.Len = uint32(nameLen)
	copy(buf[unix.SizeofInotifyEvent:], name)
	return buf
}

func TestDecodeEvents(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeEvent(1, unix.IN_CREATE|unix.IN_ISDIR, 0, "nested.d", 16)...)
	buf = append(buf, encodeEvent(2, unix.IN_MOVED_FROM, 77, "a.txt", 16)...)
	buf = append(buf, encodeEvent(2, unix.IN_IGNORED, 0, "", 0)...)
	buf = append(buf, encodeEvent(-1, unix.IN_Q_OVERFLOW, 0, "", 0)...)

	events, err := decodeEvents(buf)
	if err != nil {
		t.Fatalf("decodeEvents() error = %v", err)
	}

	want := []notify.RawEvent{
		{Handle: 1, Mask: notify.Create | notify.IsDir, Name: "nested.d"},
		{Handle: 2, Mask: notify.MovedFrom, Cookie: 77, Name: "a.txt"},
		{Handle: 2, Mask: notify.Ignored},
		{Handle: notify.NoHandle, Mask: notify.Overflow},
	}
	if len(events) != len(want) {
		t.Fatalf("decoded %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestDecodeEventsTruncated(t *testing.T) {
	buf := encodeEvent(1, unix.IN_CREATE, 0, "file", 16)

	events, err := decodeEvents(buf[:len(buf)-4])
	if err == nil {
		t.Error("decodeEvents() error = nil for truncated name")
	}
	if len(events) != 0 {
		t.Errorf("decoded %d events from truncated buffer", len(events))
	}
}

func TestInotifyMoveCookie(t *testing.T) {
	dir := t.TempDir()

	src, err := New(Config{Backend: BackendInotify}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer src.Close() // nolint:errcheck

	if _, err := src.Watch(dir); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	from, to := dir+"/from", dir+"/to"
	if err := unix.Mkdir(from, 0700); err != nil {
		t.Fatal(err)
	}
	if err := unix.Rename(from, to); err != nil {
		t.Fatal(err)
	}

	out := waitFor(t, src, func(ev notify.RawEvent) bool { return ev.Mask.Has(notify.MovedFrom) })
	in := waitFor(t, src, func(ev notify.RawEvent) bool { return ev.Mask.Has(notify.MovedTo) })

	if out.Cookie == 0 || out.Cookie != in.Cookie {
		t.Errorf("cookies = %d/%d, want equal and non-zero", out.Cookie, in.Cookie)
	}
	if out.Mask != notify.MovedFrom|notify.IsDir || in.Mask != notify.MovedTo|notify.IsDir {
		t.Errorf("masks = %v/%v", out.Mask, in.Mask)
	}
}
