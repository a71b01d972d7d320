// Package display provides output formatting for event statistics and
// tailed events.
//
// It supports multiple output formats (table, JSON, simple text).
package display

import (
	"io"

	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays statistics in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays statistics as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays statistics in simple text format.
	FormatSimple Format = "simple"
)

// Formatter formats statistics and events.
type Formatter interface {
	// FormatStats formats event totals.
	FormatStats(w io.Writer, stats stats.Statistics) error

	// FormatSnapshot formats the state of a running service.
	FormatSnapshot(w io.Writer, snap service.Snapshot) error

	// FormatTopDirectories formats the busiest directories.
	FormatTopDirectories(w io.Writer, dirs []stats.DirectoryStats) error

	// FormatEvent formats one tailed event.
	FormatEvent(w io.Writer, ev notify.Event) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowPercentiles enables percentile display.
	// Default: false.
	ShowPercentiles bool

	// ShowTimestamps enables timestamp display.
	// Default: false.
	ShowTimestamps bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
