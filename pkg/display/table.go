package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, s stats.Statistics) error {
	if err := writeHeader(w, "Event Statistics", f.config.Compact); err != nil {
		return err
	}
	if err := f.writeTable(w, []string{"Metric", "Value"}, f.statsRows(s)); err != nil {
		return err
	}
	return f.writeCategories(w, s)
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *tableFormatter) FormatSnapshot(w io.Writer, snap service.Snapshot) error {
	if err := writeHeader(w, "Service", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Root", snap.Root},
		{"Directories", formatNumber(uint64(snap.Tree.Directories))},
		{"Pending Removal", formatNumber(uint64(snap.Tree.PendingRemoval))},
		{"Pending Unmount", formatNumber(uint64(snap.Tree.PendingUnmount))},
		{"Published", formatNumber(snap.Tree.Published)},
		{"Suppressed", formatNumber(snap.Tree.Suppressed)},
		{"Subscribers", formatNumber(uint64(snap.Subscribers))},
		{"Delivered", formatNumber(snap.Delivered)},
		{"Failed Sends", formatNumber(snap.Failed)},
	}
	if f.config.ShowTimestamps && !snap.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", snap.StartedAt.Format(timeLayout)})
	}

	if err := f.writeTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}
	return f.FormatStats(w, snap.Events)
}

// FormatTopDirectories implements Formatter.FormatTopDirectories.
func (f *tableFormatter) FormatTopDirectories(w io.Writer, dirs []stats.DirectoryStats) error {
	if err := writeHeader(w, "Top Directories by Events", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, len(dirs))
	for i, dir := range dirs {
		rows[i] = []string{
			fmt.Sprintf("#%d", i+1),
			dir.Path,
			formatNumber(dir.Events),
		}
	}

	return f.writeTable(w, []string{"Rank", "Directory", "Events"}, rows)
}

// FormatEvent implements Formatter.FormatEvent.
func (f *tableFormatter) FormatEvent(w io.Writer, ev notify.Event) error {
	cookie := ""
	if ev.Cookie != 0 {
		cookie = fmt.Sprintf("  cookie=%d", ev.Cookie)
	}
	_, err := fmt.Fprintf(w, "%-32s  %s%s\n", ev.Mask, eventPath(ev), cookie)
	return err
}

func (f *tableFormatter) statsRows(s stats.Statistics) [][]string {
	rows := [][]string{
		{"Events", formatNumber(s.Events)},
		{"Bytes", formatNumber(s.Bytes)},
		{"Average Size", formatFloat(s.AvgSize, 2)},
		{"Min Size", formatNumber(uint64(s.MinSize))},
		{"Max Size", formatNumber(uint64(s.MaxSize))},
		{"Overflows", formatNumber(s.Overflows)},
	}

	if f.config.ShowPercentiles {
		rows = append(rows,
			[]string{"P50 Size", formatNumber(uint64(s.P50Size))},
			[]string{"P95 Size", formatNumber(uint64(s.P95Size))},
			[]string{"P99 Size", formatNumber(uint64(s.P99Size))},
		)
	}

	if f.config.ShowTimestamps && !s.FirstSeen.IsZero() {
		rows = append(rows,
			[]string{"First Seen", s.FirstSeen.Format(timeLayout)},
			[]string{"Last Seen", s.LastSeen.Format(timeLayout)},
		)
	}

	return rows
}

// writeCategories writes per-category counts in mask bit order.
func (f *tableFormatter) writeCategories(w io.Writer, s stats.Statistics) error {
	if len(s.Categories) == 0 {
		return nil
	}

	if err := writeHeader(w, "Events by Category", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, 0, len(s.Categories))
	for _, name := range categoryOrder(s.Categories) {
		rows = append(rows, []string{name, formatNumber(s.Categories[name])})
	}
	return f.writeTable(w, []string{"Category", "Events"}, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	for i, cell := range cells {
		if i > 0 {
			if _, err := fmt.Fprint(w, gap); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%-*s", widths[i], cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
