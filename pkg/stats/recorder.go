package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/treewatch/pkg/notify"
)

const (
	defaultWindow         = 10000
	defaultMaxDirectories = 10000
)

// recorder implements the Recorder interface.
type recorder struct {
	config Config
	now    func() time.Time

	mu    sync.RWMutex
	stats Statistics
	sizes []int // Ring of recent sizes for percentiles
	next  int
}

// NewRecorder creates an empty recorder.
func NewRecorder(cfg Config) Recorder {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MaxDirectories <= 0 {
		cfg.MaxDirectories = defaultMaxDirectories
	}

	r := &recorder{
		config: cfg,
		now:    time.Now,
	}
	r.resetLocked()
	return r
}

// Record implements Recorder.Record.
func (r *recorder) Record(ev notify.Event, size int) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.stats
	s.Events++
	s.Bytes += uint64(size)
	s.AvgSize = float64(s.Bytes) / float64(s.Events)

	if s.Events == 1 || size < s.MinSize {
		s.MinSize = size
	}
	if size > s.MaxSize {
		s.MaxSize = size
	}

	if ev.Mask.Has(notify.Overflow) {
		s.Overflows++
	}
	for _, name := range ev.Mask.Names() {
		s.Categories[name]++
	}

	if ev.Path != "" {
		if _, ok := s.Directories[ev.Path]; ok || len(s.Directories) < r.config.MaxDirectories {
			s.Directories[ev.Path]++
		}
	}

	if s.FirstSeen.IsZero() {
		s.FirstSeen = now
	}
	s.LastSeen = now

	if r.config.TrackPercentiles {
		if len(r.sizes) < r.config.Window {
			r.sizes = append(r.sizes, size)
		} else {
			r.sizes[r.next] = size
			r.next = (r.next + 1) % r.config.Window
		}
	}
}

// Snapshot implements Recorder.Snapshot.
func (r *recorder) Snapshot() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.stats
	s.Categories = copyCounts(r.stats.Categories)
	s.Directories = copyCounts(r.stats.Directories)

	if r.config.TrackPercentiles && len(r.sizes) > 0 {
		sizes := make([]int, len(r.sizes))
		copy(sizes, r.sizes)
		sort.Ints(sizes)

		s.P50Size = percentile(sizes, 50)
		s.P95Size = percentile(sizes, 95)
		s.P99Size = percentile(sizes, 99)
	}

	return s
}

// TopDirectories implements Recorder.TopDirectories.
func (r *recorder) TopDirectories(n int) []DirectoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stats.Top(n)
}

// Restore implements Recorder.Restore.
func (r *recorder) Restore(saved Statistics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = merge(r.stats, saved, r.config.MaxDirectories)
}

// Reset implements Recorder.Reset.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetLocked()
}

func (r *recorder) resetLocked() {
	r.stats = Statistics{
		Categories:  make(map[string]uint64),
		Directories: make(map[string]uint64),
	}
	r.sizes = make([]int, 0)
	r.next = 0
}

// Top returns the n directories with the most events, busiest first, ties
// by path. n <= 0 returns all.
func (s Statistics) Top(n int) []DirectoryStats {
	result := make([]DirectoryStats, 0, len(s.Directories))
	for path, count := range s.Directories {
		result = append(result, DirectoryStats{Path: path, Events: count})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Events != result[j].Events {
			return result[i].Events > result[j].Events
		}
		return result[i].Path < result[j].Path
	})

	if n > 0 && n < len(result) {
		result = result[:n]
	}
	return result
}

// merge combines two sets of totals. Percentiles are dropped.
func merge(s1, s2 Statistics, maxDirectories int) Statistics {
	result := Statistics{
		Events:      s1.Events + s2.Events,
		Bytes:       s1.Bytes + s2.Bytes,
		Overflows:   s1.Overflows + s2.Overflows,
		Categories:  copyCounts(s1.Categories),
		Directories: copyCounts(s1.Directories),
	}

	if result.Events > 0 {
		result.AvgSize = float64(result.Bytes) / float64(result.Events)
	}

	// Min/max over the sides that saw events.
	switch {
	case s1.Events == 0:
		result.MinSize, result.MaxSize = s2.MinSize, s2.MaxSize
	case s2.Events == 0:
		result.MinSize, result.MaxSize = s1.MinSize, s1.MaxSize
	default:
		result.MinSize = min(s1.MinSize, s2.MinSize)
		result.MaxSize = max(s1.MaxSize, s2.MaxSize)
	}

	for name, count := range s2.Categories {
		result.Categories[name] += count
	}
	for path, count := range s2.Directories {
		if _, ok := result.Directories[path]; ok || len(result.Directories) < maxDirectories {
			result.Directories[path] += count
		}
	}

	result.FirstSeen = earliest(s1.FirstSeen, s2.FirstSeen)
	result.LastSeen = latest(s1.LastSeen, s2.LastSeen)
	return result
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// percentile calculates the nth percentile of a sorted slice.
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between closest ranks.
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return int(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}
