package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, s stats.Statistics) error {
	if _, err := fmt.Fprintf(w, "Events: %s | Bytes: %s | Avg: %s | Min: %d | Max: %d | Overflows: %d\n",
		formatNumber(s.Events),
		formatNumber(s.Bytes),
		formatFloat(s.AvgSize, 1),
		s.MinSize,
		s.MaxSize,
		s.Overflows); err != nil {
		return err
	}

	if len(s.Categories) == 0 {
		return nil
	}

	parts := make([]string, 0, len(s.Categories))
	for _, name := range categoryOrder(s.Categories) {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.TrimPrefix(name, "IN_"), s.Categories[name]))
	}
	_, err := fmt.Fprintf(w, "Categories: %s\n", strings.Join(parts, " "))
	return err
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *simpleFormatter) FormatSnapshot(w io.Writer, snap service.Snapshot) error {
	if _, err := fmt.Fprintf(w, "Root: %s | Directories: %d | Subscribers: %d | Published: %d | Suppressed: %d\n",
		snap.Root,
		snap.Tree.Directories,
		snap.Subscribers,
		snap.Tree.Published,
		snap.Tree.Suppressed); err != nil {
		return err
	}
	return f.FormatStats(w, snap.Events)
}

// FormatTopDirectories implements Formatter.FormatTopDirectories.
func (f *simpleFormatter) FormatTopDirectories(w io.Writer, dirs []stats.DirectoryStats) error {
	for i, dir := range dirs {
		if _, err := fmt.Fprintf(w, "#%d: %s - %s events\n",
			i+1,
			dir.Path,
			formatNumber(dir.Events)); err != nil {
			return err
		}
	}

	return nil
}

// FormatEvent implements Formatter.FormatEvent.
func (f *simpleFormatter) FormatEvent(w io.Writer, ev notify.Event) error {
	_, err := fmt.Fprintf(w, "%s %s\n", ev.Mask, eventPath(ev))
	return err
}
