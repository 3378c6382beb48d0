package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"horizonmask/pkg/db"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	MaskStore
	CacheStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Masks ---

const maskColumns = `hash, stem, name, lat, lon, min_radius_km, max_radius_km, style, max_angle, obj_path, horizon_path, h3_cell, profile, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMask(row rowScanner) (*MaskRecord, error) {
	var r MaskRecord
	var name, cell sql.NullString
	var profile []byte
	err := row.Scan(
		&r.Hash, &r.Stem, &name, &r.Lat, &r.Lon,
		&r.MinRadiusKM, &r.MaxRadiusKM, &r.Style, &r.MaxAngle,
		&r.OBJPath, &r.HorizonPath, &cell, &profile, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Name = name.String
	r.H3Cell = cell.String
	if len(profile) > 0 {
		if r.Profile, err = decompress(profile); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s *SQLiteStore) GetMask(ctx context.Context, hash string) (*MaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+maskColumns+` FROM mask_cache WHERE hash = ?`, hash)
	r, err := scanMask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	return r, err
}

// SaveMask inserts or replaces the row for r.Hash.
func (s *SQLiteStore) SaveMask(ctx context.Context, r *MaskRecord) error {
	var profile []byte
	if len(r.Profile) > 0 {
		profile = compress(r.Profile)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `INSERT OR REPLACE INTO mask_cache (` + maskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.Hash, r.Stem, r.Name, r.Lat, r.Lon,
		r.MinRadiusKM, r.MaxRadiusKM, r.Style, r.MaxAngle,
		r.OBJPath, r.HorizonPath, r.H3Cell, profile, created.UTC(),
	)
	return err
}

func (s *SQLiteStore) DeleteMask(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM mask_cache WHERE hash = ?", hash)
	return err
}

// ListMasks returns every index row, oldest first.
func (s *SQLiteStore) ListMasks(ctx context.Context) ([]MaskRecord, error) {
	return s.queryMasks(ctx, `SELECT `+maskColumns+` FROM mask_cache ORDER BY created_at, hash`)
}

// GetMasksInCells returns the rows whose H3 cell is one of cells.
func (s *SQLiteStore) GetMasksInCells(ctx context.Context, cells []string) ([]MaskRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cells)), ",")
	args := make([]any, len(cells))
	for i, c := range cells {
		args[i] = c
	}
	query := `SELECT ` + maskColumns + ` FROM mask_cache WHERE h3_cell IN (` + placeholders + `) ORDER BY created_at, hash`
	return s.queryMasks(ctx, query, args...)
}

func (s *SQLiteStore) queryMasks(ctx context.Context, query string, args ...any) ([]MaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MaskRecord
	for rows.Next() {
		r, err := scanMask(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		return nil, false
	}

	out, err := decompress(val)
	if err != nil {
		return nil, false
	}
	return out, true
}

// --- Compression ---

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	// EncodeAll and DecodeAll are safe for concurrent use.
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// decompress returns data unchanged when it is not a zstd frame.
func decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	return decoder.DecodeAll(data, nil)
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, compress(val), time.Now().UTC())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
