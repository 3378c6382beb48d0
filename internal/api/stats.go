package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"

	"horizonmask/pkg/tracker"
)

// StatsHandler reports cache and download counters and process memory.
type StatsHandler struct {
	tracker *tracker.Tracker
	mu      sync.Mutex
	maxMem  uint64
}

func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

type SourceStatsDTO struct {
	Name      string `json:"name"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
	HitRate   int64  `json:"hit_rate"`
}

type DiagnosticsDTO struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

type StatsResponse struct {
	Diagnostics DiagnosticsDTO   `json:"diagnostics"`
	Sources     []SourceStatsDTO `json:"sources"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	if ms.Alloc > h.maxMem {
		h.maxMem = ms.Alloc
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	resp := StatsResponse{
		Diagnostics: DiagnosticsDTO{
			MemoryMB:    bToMb(ms.Alloc),
			MemoryMaxMB: bToMb(maxMem),
			Goroutines:  runtime.NumGoroutine(),
		},
		Sources: []SourceStatsDTO{},
	}

	for name, s := range h.tracker.Snapshot() {
		hitRate := int64(0)
		if total := s.Hits + s.Misses; total > 0 {
			hitRate = (s.Hits * 100) / total
		}
		resp.Sources = append(resp.Sources, SourceStatsDTO{
			Name:      name,
			Hits:      s.Hits,
			Misses:    s.Misses,
			Successes: s.Successes,
			Failures:  s.Failures,
			HitRate:   hitRate,
		})
	}
	sort.Slice(resp.Sources, func(i, j int) bool { return resp.Sources[i].Name < resp.Sources[j].Name })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
