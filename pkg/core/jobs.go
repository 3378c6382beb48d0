package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire(now time.Time) bool
	Run(ctx context.Context)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// TimeJob fires when the time since its last run exceeds the interval. It
// fires on the first tick.
type TimeJob struct {
	BaseJob
	mu       sync.Mutex
	lastRun  time.Time
	interval time.Duration
	action   func(context.Context)
}

func NewTimeJob(name string, interval time.Duration, action func(context.Context)) *TimeJob {
	return &TimeJob{
		BaseJob:  NewBaseJob(name),
		interval: interval,
		action:   action,
	}
}

func (j *TimeJob) ShouldFire(now time.Time) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun.IsZero() || now.Sub(j.lastRun) >= j.interval
}

func (j *TimeJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.mu.Lock()
	j.lastRun = time.Now()
	j.mu.Unlock()

	j.action(ctx)
}
