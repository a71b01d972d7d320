package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatStats implements Formatter.FormatStats.
func (f *jsonFormatter) FormatStats(w io.Writer, s stats.Statistics) error {
	return f.encode(w, s)
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *jsonFormatter) FormatSnapshot(w io.Writer, snap service.Snapshot) error {
	return f.encode(w, snap)
}

// FormatTopDirectories implements Formatter.FormatTopDirectories.
func (f *jsonFormatter) FormatTopDirectories(w io.Writer, dirs []stats.DirectoryStats) error {
	return f.encode(w, dirs)
}

// FormatEvent implements Formatter.FormatEvent. Events are written in
// their wire format, one per line, regardless of Compact.
func (f *jsonFormatter) FormatEvent(w io.Writer, ev notify.Event) error {
	msg, err := ev.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(msg)
	return err
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
