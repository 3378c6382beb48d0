package request

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// BackoffPolicy controls the per-host delay after failed requests.
type BackoffPolicy struct {
	BaseDelay time.Duration // delay after the first failure, doubled per further failure
	MaxDelay  time.Duration
	Jitter    float64 // extra random fraction of the delay, within [0, 1]
	// Recovery is the number of failures forgiven per success. 0 clears the
	// host on the first success.
	Recovery int
}

// DefaultBackoff doubles from one second up to 30s with 10% jitter and
// forgives one failure per success.
var DefaultBackoff = BackoffPolicy{
	BaseDelay: time.Second,
	MaxDelay:  30 * time.Second,
	Jitter:    0.1,
	Recovery:  1,
}

func (p BackoffPolicy) normalized() BackoffPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBackoff.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	p.Recovery = max(p.Recovery, 0)
	return p
}

// delay returns the wait after the given number of consecutive failures,
// before jitter.
func (p BackoffPolicy) delay(failures int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < failures && d < p.MaxDelay; i++ {
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// ProviderBackoff tracks the failure state of each host.
type ProviderBackoff struct {
	mu     sync.RWMutex
	hosts  map[string]*backoffState
	policy BackoffPolicy
	jitter func() float64 // uniform in [0, 1)
}

type backoffState struct {
	failures    int
	nextAllowed time.Time
}

// NewProviderBackoff creates a backoff tracker for p.
func NewProviderBackoff(p BackoffPolicy) *ProviderBackoff {
	return &ProviderBackoff{
		hosts:  make(map[string]*backoffState),
		policy: p.normalized(),
		jitter: rand.Float64,
	}
}

// Wait blocks until the provider is allowed to make a request or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.RLock()
	var next time.Time
	if state, ok := b.hosts[provider]; ok {
		next = state.nextAllowed
	}
	b.mu.RUnlock()

	d := time.Until(next)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure pushes the provider's next allowed request out.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.hosts[provider]
	if !ok {
		state = &backoffState{}
		b.hosts[provider] = state
	}
	state.failures++
	d := b.policy.delay(state.failures)
	d += time.Duration(b.jitter() * b.policy.Jitter * float64(d))
	state.nextAllowed = time.Now().Add(d)
}

// RecordSuccess forgives Recovery failures, or all of them when Recovery is 0.
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.hosts[provider]
	if !ok {
		return
	}
	if b.policy.Recovery == 0 {
		state.failures = 0
	} else {
		state.failures = max(state.failures-b.policy.Recovery, 0)
	}
	if state.failures == 0 {
		state.nextAllowed = time.Time{}
	}
}

// GetState returns the failure count and next allowed time of a provider.
func (b *ProviderBackoff) GetState(provider string) (failures int, nextAllowed time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if state, ok := b.hosts[provider]; ok {
		return state.failures, state.nextAllowed
	}
	return 0, time.Time{}
}
