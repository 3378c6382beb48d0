package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackHit(SourceDisk)
	tr.TrackMiss(SourceMemory)
	tr.TrackSuccess("example.org")
	tr.TrackFailure("example.org")
	tr.TrackFailure("example.org")

	stats = tr.Snapshot()
	tests := []struct {
		source string
		want   SourceStats
	}{
		{SourceDisk, SourceStats{Hits: 1}},
		{SourceMemory, SourceStats{Misses: 1}},
		{"example.org", SourceStats{Successes: 1, Failures: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := stats[tt.source]; got != tt.want {
				t.Errorf("stats = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackHit(SourceRemote)
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()[SourceRemote].Hits; got != 50 {
		t.Errorf("Hits = %d, want 50", got)
	}
}

func TestTracker_Nil(t *testing.T) {
	var tr *Tracker
	tr.TrackHit(SourceDisk) // must not panic
}
