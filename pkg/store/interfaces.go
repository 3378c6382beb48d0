package store

import (
	"context"
	"time"
)

// MaskRecord is one row of the shading mask cache index. The artifacts
// themselves live on disk; the row points at them.
type MaskRecord struct {
	Hash        string    `json:"hash"`
	Stem        string    `json:"stem"`
	Name        string    `json:"name"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	MinRadiusKM float64   `json:"min_radius_km"`
	MaxRadiusKM float64   `json:"max_radius_km"`
	Style       string    `json:"style"`
	MaxAngle    float64   `json:"max_angle"`
	OBJPath     string    `json:"obj_path"`
	HorizonPath string    `json:"horizon_path"`
	H3Cell      string    `json:"h3_cell"`
	Profile     []byte    `json:"-"` // encoded full-precision profile
	CreatedAt   time.Time `json:"created_at"`
}

// MaskStore handles the shading mask cache index.
type MaskStore interface {
	GetMask(ctx context.Context, hash string) (*MaskRecord, error)
	SaveMask(ctx context.Context, r *MaskRecord) error
	DeleteMask(ctx context.Context, hash string) error
	ListMasks(ctx context.Context) ([]MaskRecord, error)
	GetMasksInCells(ctx context.Context, cells []string) ([]MaskRecord, error)
}

// CacheStore handles generic key-value caching of downloads.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
