package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"horizonmask/pkg/db"
)

func TestSQLiteStore(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	defer d.Close()

	store := NewSQLiteStore(d)
	ctx := context.Background()

	testMask(t, ctx, store)
	testCache(t, ctx, store)
	testState(t, ctx, store)
}

func testMask(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Mask", func(t *testing.T) {
		rec := &MaskRecord{
			Hash:        "abc123",
			Stem:        "Zermatt_46.0_7.7_0_100_spherical",
			Name:        "Zermatt",
			Lat:         46.0,
			Lon:         7.7,
			MaxRadiusKM: 100,
			Style:       "spherical",
			MaxAngle:    23.5,
			OBJPath:     "/tmp/z.obj",
			HorizonPath: "/tmp/z.hor",
			H3Cell:      "861f8d6afffffff",
			Profile:     bytes.Repeat([]byte("profile"), 100),
		}
		if err := store.SaveMask(ctx, rec); err != nil {
			t.Fatalf("SaveMask failed: %v", err)
		}

		got, err := store.GetMask(ctx, "abc123")
		if err != nil {
			t.Fatalf("GetMask failed: %v", err)
		}
		if got == nil {
			t.Fatal("GetMask returned nil")
		}
		if got.Stem != rec.Stem || got.Name != "Zermatt" || got.MaxAngle != 23.5 || got.H3Cell != rec.H3Cell {
			t.Errorf("GetMask mismatch: %+v", got)
		}
		if !bytes.Equal(got.Profile, rec.Profile) {
			t.Errorf("Profile not restored, got %d bytes", len(got.Profile))
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}

		missing, err := store.GetMask(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("expected nil, nil for a missing row, got %v, %v", missing, err)
		}

		if err := store.DeleteMask(ctx, "abc123"); err != nil {
			t.Fatalf("DeleteMask failed: %v", err)
		}
		if got, _ := store.GetMask(ctx, "abc123"); got != nil {
			t.Error("row still present after DeleteMask")
		}
	})
}

func testCache(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Cache", func(t *testing.T) {
		key := "index:https://example.org/index.tsv"
		val := []byte("stem\turl\n")
		if err := store.SetCache(ctx, key, val); err != nil {
			t.Errorf("SetCache failed: %v", err)
		}
		got, ok := store.GetCache(ctx, key)
		if !ok || !bytes.Equal(got, val) {
			t.Errorf("GetCache = %q, %v", got, ok)
		}

		has, err := store.HasCache(ctx, key)
		if err != nil || !has {
			t.Errorf("HasCache = %v, %v", has, err)
		}
		has, _ = store.HasCache(ctx, "missing")
		if has {
			t.Error("HasCache reported a missing key")
		}

		keys, err := store.ListCacheKeys(ctx, "index:")
		if err != nil || len(keys) != 1 || keys[0] != key {
			t.Errorf("ListCacheKeys = %v, %v", keys, err)
		}
	})
}

func testState(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("State", func(t *testing.T) {
		if err := store.SetState(ctx, "last_run", "2026-01-01"); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}
		val, ok := store.GetState(ctx, "last_run")
		if !ok || val != "2026-01-01" {
			t.Errorf("GetState = %q, %v", val, ok)
		}
		if err := store.DeleteState(ctx, "last_run"); err != nil {
			t.Fatalf("DeleteState failed: %v", err)
		}
		if _, ok := store.GetState(ctx, "last_run"); ok {
			t.Error("state still present after DeleteState")
		}
	})
}

func TestDecompress_Passthrough(t *testing.T) {
	raw := []byte("plain bytes")
	got, err := decompress(raw)
	if err != nil || !bytes.Equal(got, raw) {
		t.Errorf("decompress(plain) = %q, %v", got, err)
	}

	packed := compress(raw)
	if !bytes.HasPrefix(packed, zstdMagic) {
		t.Fatal("compress did not produce a zstd frame")
	}
	got, err = decompress(packed)
	if err != nil || !bytes.Equal(got, raw) {
		t.Errorf("decompress(zstd) = %q, %v", got, err)
	}
}
