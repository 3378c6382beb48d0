// Package cache persists synthesized shading masks keyed by request parameters.
// Lookups go through an in-process LRU, the SQLite index with its on-disk
// artifacts and finally an optional remote index of precomputed artifacts.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/uber/h3-go/v4"

	"horizonmask/pkg/geo"
	"horizonmask/pkg/horizon"
	"horizonmask/pkg/mask"
	"horizonmask/pkg/model"
	"horizonmask/pkg/request"
	"horizonmask/pkg/store"
	"horizonmask/pkg/tracker"
)

// Options configures a Cache.
type Options struct {
	Dir           string
	MemorySize    int
	MemoryTTL     time.Duration
	H3Resolution  int
	HorizonFormat horizon.Format
}

// Entry is a cached mask with the profile it was built from.
type Entry struct {
	Key         Key
	Header      model.ArtifactHeader
	Mask        *mask.ShadingMask // canonical, unplaced; callers must not modify it
	Profile     horizon.Profile
	OBJPath     string
	HorizonPath string
	Source      string // one of the tracker.Source* names
}

// Cache is the mask cache. It is safe for concurrent use.
type Cache struct {
	store   store.MaskStore
	remote  *RemoteIndex
	mem     *expirable.LRU[string, *Entry]
	tracker *tracker.Tracker
	opts    Options
	logger  *slog.Logger
}

// New creates a cache. remote and t may be nil.
func New(s store.MaskStore, remote *RemoteIndex, t *tracker.Tracker, opts Options, logger *slog.Logger) (*Cache, error) {
	if opts.Dir == "" {
		return nil, &model.ValidationError{Field: "cache.dir", Value: opts.Dir, Reason: "must not be empty"}
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	if opts.MemorySize <= 0 {
		opts.MemorySize = 64
	}
	if opts.HorizonFormat == "" {
		opts.HorizonFormat = horizon.FormatPlain
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   s,
		remote:  remote,
		mem:     expirable.NewLRU[string, *Entry](opts.MemorySize, nil, opts.MemoryTTL),
		tracker: t,
		opts:    opts,
		logger:  logger,
	}, nil
}

func (c *Cache) path(k Key, suffix string) string {
	return filepath.Join(c.opts.Dir, k.Stem()+suffix)
}

// Lookup returns the entry stored under k. A persisted artifact is trusted
// once it exists and parses. Remote download failures are returned as errors;
// a plain miss is (nil, false, nil).
func (c *Cache) Lookup(ctx context.Context, k Key) (*Entry, bool, error) {
	hash := k.Hash()
	if e, ok := c.mem.Get(hash); ok {
		c.tracker.TrackHit(tracker.SourceMemory)
		return e, true, nil
	}
	c.tracker.TrackMiss(tracker.SourceMemory)

	e, err := c.fromDisk(ctx, k)
	if err != nil {
		return nil, false, err
	}
	if e != nil {
		c.tracker.TrackHit(tracker.SourceDisk)
		c.mem.Add(hash, e)
		return e, true, nil
	}
	c.tracker.TrackMiss(tracker.SourceDisk)

	if c.remote == nil {
		return nil, false, nil
	}
	e, err = c.fromRemote(ctx, k)
	if err != nil {
		c.tracker.TrackFailure(tracker.SourceRemote)
		return nil, false, err
	}
	if e == nil {
		c.tracker.TrackMiss(tracker.SourceRemote)
		return nil, false, nil
	}
	c.tracker.TrackHit(tracker.SourceRemote)
	c.mem.Add(hash, e)
	return e, true, nil
}

func (c *Cache) fromDisk(ctx context.Context, k Key) (*Entry, error) {
	rec, err := c.store.GetMask(ctx, k.Hash())
	if err != nil {
		return nil, fmt.Errorf("cache index: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	data, err := os.ReadFile(rec.OBJPath)
	if err == nil {
		var h model.ArtifactHeader
		var m *mask.ShadingMask
		var rows []horizon.DegreeSample
		h, m, rows, err = decodeArtifact(data)
		if err == nil && KeyFromHeader(h) != k {
			// Another key with the same stem rewrote the file.
			err = fmt.Errorf("artifact is for %q", KeyFromHeader(h).LocationName)
		}
		if err == nil {
			p, perr := decodeProfile(rec.Profile)
			if perr != nil {
				c.logger.Warn("Cached profile unreadable, using embedded horizon", "stem", rec.Stem, "error", perr)
				p = horizon.FromDegrees(rows)
			}
			return &Entry{Key: k, Header: h, Mask: m, Profile: p, OBJPath: rec.OBJPath, HorizonPath: rec.HorizonPath, Source: tracker.SourceDisk}, nil
		}
	}

	c.logger.Warn("Dropping unusable cache entry", "stem", rec.Stem, "path", rec.OBJPath, "error", err)
	if derr := c.store.DeleteMask(ctx, rec.Hash); derr != nil {
		return nil, fmt.Errorf("cache index: %w", derr)
	}
	return nil, nil
}

func (c *Cache) fromRemote(ctx context.Context, k Key) (*Entry, error) {
	stem := k.Stem()
	u, ok, err := c.remote.Lookup(ctx, stem)
	if err != nil || !ok {
		return nil, err
	}
	c.logger.Info("Downloading precomputed mask", "stem", stem, "url", u)

	objPath := c.path(k, ".obj")
	if err := c.remote.fetcher.Download(ctx, u, objPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(objPath)
	if err != nil {
		return nil, err
	}
	h, m, rows, err := decodeArtifact(data)
	if err == nil && KeyFromHeader(h) != k {
		err = fmt.Errorf("artifact is for %s", KeyFromHeader(h).Stem())
	}
	if err != nil {
		os.Remove(objPath)
		c.logger.Warn("Ignoring remote artifact", "stem", stem, "url", u, "error", err)
		return nil, nil
	}

	p := horizon.FromDegrees(rows)
	if len(p.Samples) == 0 {
		p = profileFromMask(m)
	}
	e := &Entry{Key: k, Header: h, Mask: m, Profile: p, OBJPath: objPath, Source: tracker.SourceRemote}
	if err := c.finish(ctx, e); err != nil {
		os.Remove(objPath)
		return nil, err
	}
	return e, nil
}

// profileFromMask recovers a profile from the silhouette of a mask.
func profileFromMask(m *mask.ShadingMask) horizon.Profile {
	samples := m.Angles()
	sort.Slice(samples, func(i, j int) bool { return samples[i].AzimuthDeg < samples[j].AzimuthDeg })
	p := horizon.Profile{Samples: samples, MaxAngle: -90}
	for _, s := range samples {
		if s.AngleDeg > p.MaxAngle {
			p.MaxAngle, p.MaxAzimuth = s.AngleDeg, s.AzimuthDeg
		}
	}
	return p
}

// Store persists a canonical mask. The OBJ and horizon files are written
// completely before the index row, so a crash never leaves a row pointing at
// a partial artifact. Unshaded results are not cached.
func (c *Cache) Store(ctx context.Context, k Key, m *mask.ShadingMask, p horizon.Profile, h model.ArtifactHeader) (*Entry, error) {
	if m == nil {
		return nil, model.ErrNoShading
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	data, err := encodeArtifact(h, m, p)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	objPath := c.path(k, ".obj")
	if err := request.WriteFileAtomic(objPath, data); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	e := &Entry{Key: k, Header: h, Mask: m, Profile: p, OBJPath: objPath, Source: tracker.SourceComputed}
	if err := c.finish(ctx, e); err != nil {
		return nil, err
	}
	c.logger.Info("Cached mask", "stem", k.Stem(), "obj", objPath, "horizon", e.HorizonPath)
	return e, nil
}

// finish writes the horizon file and the index row of e, then remembers it.
func (c *Cache) finish(ctx context.Context, e *Entry) error {
	var buf bytes.Buffer
	if err := horizon.WriteFile(&buf, e.Profile, c.opts.HorizonFormat, e.Header); err != nil {
		return fmt.Errorf("encode horizon: %w", err)
	}
	e.HorizonPath = c.path(e.Key, ".horizon.txt")
	if err := request.WriteFileAtomic(e.HorizonPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write horizon: %w", err)
	}

	blob, err := encodeProfile(e.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	cell, err := c.cell(e.Key.Lat, e.Key.Lon)
	if err != nil {
		return err
	}
	rec := &store.MaskRecord{
		Hash:        e.Key.Hash(),
		Stem:        e.Key.Stem(),
		Name:        e.Key.LocationName,
		Lat:         e.Key.Lat,
		Lon:         e.Key.Lon,
		MinRadiusKM: e.Key.MinRadiusKM,
		MaxRadiusKM: e.Key.MaxRadiusKM,
		Style:       string(e.Key.Style),
		MaxAngle:    e.Profile.MaxAngle,
		OBJPath:     e.OBJPath,
		HorizonPath: e.HorizonPath,
		H3Cell:      cell,
		Profile:     blob,
		CreatedAt:   e.Header.CreatedAt,
	}
	if err := c.store.SaveMask(ctx, rec); err != nil {
		return fmt.Errorf("cache index: %w", err)
	}
	c.mem.Add(rec.Hash, e)
	return nil
}

func (c *Cache) cell(lat, lon float64) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), c.opts.H3Resolution)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return cell.String(), nil
}

// Nearby is an index row with its distance from the query point.
type Nearby struct {
	store.MaskRecord
	DistanceM float64 `json:"distance_m"`
}

// Nearby lists cached masks within k H3 rings of (lat, lon), closest first.
func (c *Cache) Nearby(ctx context.Context, lat, lon float64, k int) ([]Nearby, error) {
	origin, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), c.opts.H3Resolution)
	if err != nil {
		return nil, &model.ValidationError{Field: "location", Value: [2]float64{lat, lon}, Reason: "no H3 cell", Err: err}
	}
	disk, err := h3.GridDisk(origin, max(k, 0))
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}
	cells := make([]string, len(disk))
	for i, cl := range disk {
		cells[i] = cl.String()
	}

	recs, err := c.store.GetMasksInCells(ctx, cells)
	if err != nil {
		return nil, fmt.Errorf("cache index: %w", err)
	}
	here := geo.Point{Lat: lat, Lon: lon}
	out := make([]Nearby, len(recs))
	for i, r := range recs {
		out[i] = Nearby{MaskRecord: r, DistanceM: geo.Distance(here, geo.Point{Lat: r.Lat, Lon: r.Lon})}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}
