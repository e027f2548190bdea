package db

import (
	"context"
	"database/sql"
	"testing"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetLatestListing_Empty(t *testing.T) {
	db := setupDB(t)

	l, err := GetLatestListing(context.Background(), db)
	if err != nil {
		t.Fatalf("GetLatestListing() error = %v", err)
	}
	if l != nil {
		t.Errorf("GetLatestListing() = %+v, want nil", l)
	}
}

func TestInsertListing_LatestWins(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	for _, l := range []*Listing{
		{ID: "01A", FilesJSON: `[{"name":"old.json"}]`, FetchedAt: 100},
		{ID: "01C", FilesJSON: `[{"name":"new.json"}]`, FetchedAt: 300},
		{ID: "01B", FilesJSON: `[{"name":"mid.json"}]`, FetchedAt: 200},
	} {
		if err := InsertListing(ctx, db, l); err != nil {
			t.Fatalf("InsertListing(%s) error = %v", l.ID, err)
		}
	}

	got, err := GetLatestListing(ctx, db)
	if err != nil {
		t.Fatalf("GetLatestListing() error = %v", err)
	}
	if got == nil || got.ID != "01C" || got.FetchedAt != 300 {
		t.Errorf("GetLatestListing() = %+v, want 01C", got)
	}
}

func TestPruneListings(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	for i, id := range []string{"01A", "01B", "01C", "01D"} {
		if err := InsertListing(ctx, db, &Listing{ID: id, FilesJSON: "[]", FetchedAt: int64(i)}); err != nil {
			t.Fatalf("InsertListing() error = %v", err)
		}
	}

	removed, err := PruneListings(ctx, db, 2)
	if err != nil {
		t.Fatalf("PruneListings() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	stats, err := GetStats(ctx, db)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Listings != 2 {
		t.Errorf("Listings = %d, want 2", stats.Listings)
	}

	latest, _ := GetLatestListing(ctx, db)
	if latest.ID != "01D" {
		t.Errorf("latest = %s, want 01D", latest.ID)
	}
}

func TestSnapshot_PutGet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	s := &CachedSnapshot{Name: "2024-06-01.json", SHA: "abc", Body: []byte(`{"time":1}`), FetchedAt: 10}
	if err := PutSnapshot(ctx, db, s); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	got, err := GetSnapshot(ctx, db, s.Name, "abc")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if got == nil || string(got.Body) != `{"time":1}` {
		t.Fatalf("GetSnapshot() = %+v", got)
	}

	// Any sha
	if got, _ := GetSnapshot(ctx, db, s.Name, ""); got == nil {
		t.Error("GetSnapshot(empty sha) = nil, want cached body")
	}

	// Sha mismatch is a miss
	if got, _ := GetSnapshot(ctx, db, s.Name, "def"); got != nil {
		t.Errorf("GetSnapshot(mismatched sha) = %+v, want nil", got)
	}

	// Unknown name is a miss
	if got, _ := GetSnapshot(ctx, db, "missing.json", ""); got != nil {
		t.Errorf("GetSnapshot(missing) = %+v, want nil", got)
	}
}

func TestSnapshot_Upsert(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_ = PutSnapshot(ctx, db, &CachedSnapshot{Name: "a.json", SHA: "1", Body: []byte("{}"), FetchedAt: 1})
	if err := PutSnapshot(ctx, db, &CachedSnapshot{Name: "a.json", SHA: "2", Body: []byte(`{"x":1}`), FetchedAt: 2}); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	got, _ := GetSnapshot(ctx, db, "a.json", "2")
	if got == nil || got.FetchedAt != 2 {
		t.Errorf("GetSnapshot() = %+v, want replaced row", got)
	}

	stats, _ := GetStats(ctx, db)
	if stats.Snapshots != 1 || stats.SnapshotBytes != 7 {
		t.Errorf("stats = %+v, want 1 snapshot of 7 bytes", stats)
	}
}

func TestClearCache(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_ = InsertListing(ctx, db, &Listing{ID: "01A", FilesJSON: "[]", FetchedAt: 1})
	_ = PutSnapshot(ctx, db, &CachedSnapshot{Name: "a.json", SHA: "1", Body: []byte("{}"), FetchedAt: 1})

	removed, err := ClearCache(ctx, db)
	if err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	stats, _ := GetStats(ctx, db)
	if stats.Listings != 0 || stats.Snapshots != 0 {
		t.Errorf("stats after clear = %+v", stats)
	}
}
