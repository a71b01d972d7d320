package display

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/0xmhha/treewatch/pkg/notify"
)

const timeLayout = "2006-01-02 15:04:05"

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// ValidFormat reports whether name is a known format.
func ValidFormat(name string) bool {
	switch Format(name) {
	case FormatTable, FormatJSON, FormatSimple:
		return true
	}
	return false
}

// formatNumber formats a number with thousand separators.
func formatNumber(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatFloat formats a float with specified precision.
func formatFloat(f float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, f)
}

// eventPath joins an event's directory and entry name for display.
func eventPath(ev notify.Event) string {
	switch {
	case ev.Path == "":
		return "-"
	case ev.Name == "":
		return ev.Path
	default:
		return path.Join(ev.Path, ev.Name)
	}
}

// categoryOrder returns the category names of counts in mask bit order.
func categoryOrder(counts map[string]uint64) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	bits := func(name string) notify.Mask {
		m, err := notify.ParseMask(name)
		if err != nil {
			return notify.Everything
		}
		return m
	}
	sort.Slice(names, func(i, j int) bool {
		if bi, bj := bits(names[i]), bits(names[j]); bi != bj {
			return bi < bj
		}
		return names[i] < names[j]
	})
	return names
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}
