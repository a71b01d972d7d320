// Package stats counts published events and persists the counters.
//
// The Recorder keeps running totals per category and per directory, plus
// size statistics of the encoded messages. The Store keeps one snapshot in
// a bbolt database so that totals survive a restart. Only counters are
// stored; events themselves are never persisted.
//
// Example usage:
//
//	rec := stats.NewRecorder(stats.Config{TrackPercentiles: true})
//	rec.Record(ev, len(msg))
//
//	store, err := stats.Open(stats.StoreConfig{DBPath: "~/.local/state/treewatch/stats.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	_ = store.Save(rec.Snapshot())
package stats

import (
	"time"

	"github.com/0xmhha/treewatch/pkg/notify"
)

// Recorder accumulates event statistics. It is safe for concurrent use.
type Recorder interface {
	// Record adds one published event whose encoded form is size bytes.
	Record(ev notify.Event, size int)

	// Snapshot returns the current totals.
	Snapshot() Statistics

	// TopDirectories returns the n directories with the most events,
	// busiest first. n <= 0 returns all.
	TopDirectories(n int) []DirectoryStats

	// Restore adds previously saved totals to the current ones.
	Restore(saved Statistics)

	// Reset clears all totals.
	Reset()
}

// Statistics contains event totals.
type Statistics struct {
	// Events is the number of published events.
	Events uint64 `json:"events"`

	// Bytes is the total size of the encoded events.
	Bytes uint64 `json:"bytes"`

	// AvgSize is the mean encoded size.
	AvgSize float64 `json:"avg_size"`

	// MinSize and MaxSize bound the encoded size.
	MinSize int `json:"min_size"`
	MaxSize int `json:"max_size"`

	// P50Size, P95Size and P99Size are size percentiles over the recent
	// window. They are not persisted.
	P50Size int `json:"p50_size,omitempty"`
	P95Size int `json:"p95_size,omitempty"`
	P99Size int `json:"p99_size,omitempty"`

	// Overflows counts queue overflow notifications.
	Overflows uint64 `json:"overflows"`

	// Categories counts events per category name (IN_CREATE, ...). An
	// event counts once for each of its bits.
	Categories map[string]uint64 `json:"categories,omitempty"`

	// Directories counts events per root-relative directory.
	Directories map[string]uint64 `json:"directories,omitempty"`

	// FirstSeen and LastSeen are the times of the first and last event.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// DirectoryStats is the event count of one directory.
type DirectoryStats struct {
	Path   string `json:"path"`
	Events uint64 `json:"events"`
}

// Config contains recorder configuration.
type Config struct {
	// TrackPercentiles enables size percentiles.
	// Default: false.
	TrackPercentiles bool

	// Window is the number of recent sizes kept for percentiles.
	// Default: 10000.
	Window int

	// MaxDirectories caps the number of directories counted
	// individually. Events in further directories still count toward
	// the totals.
	// Default: 10000.
	MaxDirectories int
}

// StoreConfig contains store configuration.
type StoreConfig struct {
	// DBPath is the bbolt database file. A leading ~ is expanded.
	DBPath string

	// Timeout bounds waiting for the database lock.
	// Default: 1s.
	Timeout time.Duration

	// ReadOnly opens the database without write access, which allows
	// readers alongside each other but not alongside a writer.
	ReadOnly bool
}
