package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"horizonmask/pkg/model"
	"horizonmask/pkg/tracker"
	"horizonmask/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("horizonmask/%s", version.Version)

// Cacher stores response bodies by key.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Options configures a Client.
type Options struct {
	Retries   int // extra attempts after the first
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64 // see BackoffPolicy
	Recovery  int
}

// DefaultOptions allows a single retry.
var DefaultOptions = Options{
	Retries:   1,
	Timeout:   120 * time.Second,
	BaseDelay: DefaultBackoff.BaseDelay,
	MaxDelay:  DefaultBackoff.MaxDelay,
	Jitter:    DefaultBackoff.Jitter,
	Recovery:  DefaultBackoff.Recovery,
}

// Client handles HTTP downloads with per-host queuing, caching and tracking.
type Client struct {
	httpClient *http.Client
	cache      Cacher
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	retries    int

	// Queues per provider (host)
	queues map[string]chan job
	mu     sync.Mutex
}

type job struct {
	req      *http.Request
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client. c may be nil to disable response caching.
func New(c Cacher, t *tracker.Tracker, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      c,
		tracker:    t,
		backoff: NewProviderBackoff(BackoffPolicy{
			BaseDelay: opts.BaseDelay,
			MaxDelay:  opts.MaxDelay,
			Jitter:    opts.Jitter,
			Recovery:  opts.Recovery,
		}),
		retries:    max(opts.Retries, 0),
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request, served from the cache when cacheKey is set and present.
// Failures after the last attempt are returned as *model.NetworkError.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, &model.ValidationError{Field: "url", Value: u, Reason: "not a valid URL", Err: err}
	}
	provider := normalizeProvider(parsedURL.Host)

	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackHit(provider)
			slog.Debug("Cache Hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackMiss(provider)
		slog.Debug("Cache Miss", "provider", provider, "key", cacheKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, cacheKey: cacheKey, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// Download fetches u into dst. The body is written to a temporary file in the
// same directory and renamed, so dst is either complete or absent.
func (c *Client) Download(ctx context.Context, u, dst string) error {
	body, err := c.Get(ctx, u, "")
	if err != nil {
		return err
	}
	return WriteFileAtomic(dst, body)
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

func normalizeProvider(host string) string {
	h := strings.ToLower(host)
	if i := strings.LastIndexByte(h, ':'); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return strings.TrimPrefix(h, "www.")
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 16)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// Blocks while the queue is full, throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}
		if j.req.Header.Get("User-Agent") == "" {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		body, err := c.executeWithRetry(provider, j.req)
		if err == nil {
			c.tracker.TrackSuccess(provider)
			if j.cacheKey != "" && c.cache != nil {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("Failed to cache response", "url", j.req.URL, "error", err)
				}
			}
		} else {
			c.tracker.TrackFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}
	}
}

// errPermanent marks responses that a retry cannot fix.
var errPermanent = errors.New("permanent failure")

// executeWithRetry runs the request at most retries+1 times. Network errors,
// 429 and 5xx are retried; other 4xx fail at once.
func (c *Client) executeWithRetry(provider string, req *http.Request) ([]byte, error) {
	attempts := 0
	var lastErr error
	for attempts <= c.retries {
		if err := c.backoff.Wait(req.Context(), provider); err != nil {
			return nil, err
		}
		attempts++

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempts)
		body, err := c.do(req)
		if err == nil {
			c.backoff.RecordSuccess(provider)
			return body, nil
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		lastErr = err
		c.backoff.RecordFailure(provider)
		if errors.Is(err, errPermanent) {
			break
		}
		slog.Warn("Request failed", "url", req.URL, "attempt", attempts, "error", err)
	}
	return nil, &model.NetworkError{URL: req.URL.String(), Attempts: attempts, Err: lastErr}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", errPermanent, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return body, nil
}
