package db

import (
	"context"
	"database/sql"

	"github.com/suwonj/timeofme/internal/errors"
)

// Listing is one cached copy of the remote backup listing.
type Listing struct {
	ID        string // ULID
	FilesJSON string
	FetchedAt int64
}

// CachedSnapshot is a cached backup body, keyed by file name and content sha.
type CachedSnapshot struct {
	Name      string
	SHA       string
	Body      []byte
	FetchedAt int64
}

// Stats summarizes the cache contents.
type Stats struct {
	Listings      int   `json:"listings"`
	Snapshots     int   `json:"snapshots"`
	SnapshotBytes int64 `json:"snapshot_bytes"`
}

// InsertListing stores a fetched listing.
func InsertListing(ctx context.Context, db *sql.DB, l *Listing) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO listings (id, files_json, fetched_at) VALUES (?, ?, ?)`,
		l.ID, l.FilesJSON, l.FetchedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetLatestListing returns the most recently fetched listing, or nil if none is cached.
func GetLatestListing(ctx context.Context, db *sql.DB) (*Listing, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, files_json, fetched_at
		FROM listings
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`)

	var l Listing
	err := row.Scan(&l.ID, &l.FilesJSON, &l.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &l, nil
}

// PruneListings deletes all but the newest keep listings and returns the number removed.
func PruneListings(ctx context.Context, db *sql.DB, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM listings
		WHERE id NOT IN (
			SELECT id FROM listings ORDER BY fetched_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// PutSnapshot stores or replaces the cached body for a backup file.
func PutSnapshot(ctx context.Context, db *sql.DB, s *CachedSnapshot) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO snapshots (name, sha, body, size, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sha = excluded.sha,
			body = excluded.body,
			size = excluded.size,
			fetched_at = excluded.fetched_at
	`, s.Name, s.SHA, s.Body, len(s.Body), s.FetchedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSnapshot returns the cached body for name, or nil when nothing is cached
// or the cached sha differs from sha. An empty sha matches any cached body.
func GetSnapshot(ctx context.Context, db *sql.DB, name, sha string) (*CachedSnapshot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT name, sha, body, fetched_at FROM snapshots WHERE name = ?`, name)

	var s CachedSnapshot
	err := row.Scan(&s.Name, &s.SHA, &s.Body, &s.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if sha != "" && s.SHA != sha {
		return nil, nil
	}
	return &s, nil
}

// ClearCache removes every cached listing and snapshot and returns the number of rows removed.
func ClearCache(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var total int64
	for _, stmt := range []string{`DELETE FROM listings`, `DELETE FROM snapshots`} {
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(total), nil
}

// GetStats counts cached rows.
func GetStats(ctx context.Context, db *sql.DB) (*Stats, error) {
	var s Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&s.Listings); err != nil {
		return nil, errors.NewInternal(err)
	}
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM snapshots`).Scan(&s.Snapshots, &s.SnapshotBytes)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &s, nil
}
