package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"horizonmask/pkg/cache"
)

// NearbyFinder lists cached masks around a point.
type NearbyFinder interface {
	Nearby(ctx context.Context, lat, lon float64, k int) ([]cache.Nearby, error)
}

// CacheHandler serves GET /api/cache/nearby?lat=&lon=&rings=
type CacheHandler struct {
	finder NearbyFinder

	// API Cache (15s TTL)
	responses *expirable.LRU[string, []byte]
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(f NearbyFinder) *CacheHandler {
	return &CacheHandler{
		finder:    f,
		responses: expirable.NewLRU[string, []byte](128, nil, 15*time.Second),
	}
}

const maxRings = 10

func (h *CacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}

	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	rings := 1
	if s := r.URL.Query().Get("rings"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > maxRings {
			http.Error(w, "rings must be within [0, 10]", http.StatusBadRequest)
			return
		}
		rings = v
	}

	key := r.URL.RawQuery
	if resp, ok := h.responses.Get(key); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
		return
	}

	masks, err := h.finder.Nearby(r.Context(), lat, lon, rings)
	if err != nil {
		http.Error(w, "failed to query cache", http.StatusInternalServerError)
		return
	}
	if masks == nil {
		masks = []cache.Nearby{}
	}

	resp, err := json.Marshal(masks)
	if err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	h.responses.Add(key, resp)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
