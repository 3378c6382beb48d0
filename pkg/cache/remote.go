package cache

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
)

// Fetcher downloads remote content. *request.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
	Download(ctx context.Context, u, dst string) error
}

// RemoteIndex is a tab separated list of precomputed artifacts: a file name
// stem followed by its download URL. The index is fetched once per process.
type RemoteIndex struct {
	url     string
	fetcher Fetcher

	mu    sync.Mutex
	lines []string
}

// NewRemoteIndex returns an index backed by url.
func NewRemoteIndex(url string, f Fetcher) *RemoteIndex {
	return &RemoteIndex{url: url, fetcher: f}
}

// URL returns the index location.
func (r *RemoteIndex) URL() string { return r.url }

// Lookup returns the download URL of the first line containing stem.
// Download failures are returned as *model.NetworkError.
func (r *RemoteIndex) Lookup(ctx context.Context, stem string) (string, bool, error) {
	lines, err := r.load(ctx)
	if err != nil {
		return "", false, err
	}
	for _, line := range lines {
		if !strings.Contains(line, stem) {
			continue
		}
		if u := urlField(line); u != "" {
			return u, true, nil
		}
	}
	return "", false, nil
}

func (r *RemoteIndex) load(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines != nil {
		return r.lines, nil
	}

	body, err := r.fetcher.Get(ctx, r.url, "index:"+r.url)
	if err != nil {
		return nil, err
	}
	lines := []string{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	r.lines = lines
	return lines, nil
}

// urlField picks the URL column of an index line: the first field that looks
// like a URL, else the second column.
func urlField(line string) string {
	fields := strings.Split(line, "\t")
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			return f
		}
	}
	if len(fields) >= 2 {
		return strings.TrimSpace(fields[1])
	}
	return ""
}
