package tracker

import (
	"sync"
	"sync/atomic"
)

// Sources used by the mask cache. Download hosts are tracked under their host name.
const (
	SourceMemory   = "memory"
	SourceDisk     = "disk"
	SourceRemote   = "remote"
	SourceComputed = "computed"
)

// Tracker counts cache and download outcomes per source.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*SourceStats
}

// SourceStats holds the counters of one source.
// Fields are accessed atomically.
type SourceStats struct {
	Hits      int64
	Misses    int64
	Successes int64
	Failures  int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*SourceStats),
	}
}

func (t *Tracker) getStats(source string) *SourceStats {
	t.mu.RLock()
	s, ok := t.stats[source]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[source]; ok {
		return s
	}
	s = &SourceStats{}
	t.stats[source] = s
	return s
}

// TrackHit counts a lookup answered by source.
func (t *Tracker) TrackHit(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Hits, 1)
}

func (t *Tracker) TrackMiss(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Misses, 1)
}

func (t *Tracker) TrackSuccess(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Successes, 1)
}

func (t *Tracker) TrackFailure(source string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(source).Failures, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]SourceStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = SourceStats{
			Hits:      atomic.LoadInt64(&v.Hits),
			Misses:    atomic.LoadInt64(&v.Misses),
			Successes: atomic.LoadInt64(&v.Successes),
			Failures:  atomic.LoadInt64(&v.Failures),
		}
	}
	return result
}
