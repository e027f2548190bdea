package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/backup"
	"github.com/suwonj/timeofme/internal/db"
	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/metrics"
	"github.com/suwonj/timeofme/internal/source"
)

// ListBackupsInput contains parameters for the ListBackups operation.
type ListBackupsInput struct {
	Refresh bool // skip a fresh cache hit and ask the remote
}

// ListBackupsOutput contains the result of the ListBackups operation.
type ListBackupsOutput struct {
	Files     []source.File `json:"files"`
	Source    string        `json:"source"` // cache, remote or stale
	FetchedAt int64         `json:"fetched_at"`
}

// ListBackups returns the backup files, newest first.
//
// A cached listing younger than the configured TTL is returned as is. Otherwise
// the remote is asked and the answer cached. When the remote fails, any
// decodable cached listing is returned instead, however old.
func ListBackups(ctx context.Context, env *Env, input ListBackupsInput) (*ListBackupsOutput, error) {
	log := env.log()
	now := env.now()

	cached := loadCachedListing(ctx, env)
	if cached != nil && !input.Refresh {
		age := now.Sub(time.Unix(cached.FetchedAt, 0))
		if age < env.cfg().CacheTTL() {
			log.Debug("backup listing served from cache", zap.Duration("age", age))
			metrics.ObserveListing(SourceCache)
			cached.Source = SourceCache
			return cached, nil
		}
	}

	files, err := env.Source.ListFiles(ctx)
	if err != nil {
		if cerr := checkCancelled(ctx, "list backups"); cerr != nil {
			return nil, cerr
		}
		metrics.ObserveFailure("listing")
		if cached != nil {
			log.Warn("remote listing failed; using cached listing",
				zap.Error(err), zap.Int64("fetched_at", cached.FetchedAt))
			metrics.ObserveListing(SourceStale)
			cached.Source = SourceStale
			return cached, nil
		}
		log.Error("remote listing failed", zap.Error(err))
		if !errors.Is(err, errors.ErrListingFailed) {
			err = errors.NewListingFailed(err.Error())
		}
		return nil, err
	}

	out := &ListBackupsOutput{
		Files:     source.SelectBackups(files),
		Source:    SourceRemote,
		FetchedAt: now.Unix(),
	}
	storeListing(ctx, env, out)
	metrics.ObserveListing(SourceRemote)
	return out, nil
}

// loadCachedListing returns the newest decodable cached listing, or nil.
func loadCachedListing(ctx context.Context, env *Env) *ListBackupsOutput {
	log := env.log()

	row, err := db.GetLatestListing(ctx, env.DB)
	if err != nil {
		log.Warn("failed to read cached listing", zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}

	var files []source.File
	if err := json.Unmarshal([]byte(row.FilesJSON), &files); err != nil {
		log.Warn("ignoring cached listing", zap.String("id", row.ID), zap.Error(errors.NewCacheCorrupt(err)))
		metrics.ObserveFailure("cache_corrupt")
		return nil
	}
	return &ListBackupsOutput{Files: files, FetchedAt: row.FetchedAt}
}

// storeListing caches a remote listing and prunes old rows.
// Failures are logged; the caller still has the fresh listing.
func storeListing(ctx context.Context, env *Env, out *ListBackupsOutput) {
	log := env.log()

	id, err := generateULID(time.Unix(out.FetchedAt, 0))
	if err != nil {
		log.Warn("failed to generate listing id", zap.Error(err))
		return
	}
	data, err := json.Marshal(out.Files)
	if err != nil {
		log.Warn("failed to encode listing", zap.Error(err))
		return
	}

	if err := db.InsertListing(ctx, env.DB, &db.Listing{ID: id, FilesJSON: string(data), FetchedAt: out.FetchedAt}); err != nil {
		log.Warn("failed to cache listing", zap.Error(err))
		return
	}
	if n, err := db.PruneListings(ctx, env.DB, ListingsKept); err != nil {
		log.Warn("failed to prune cached listings", zap.Error(err))
	} else if n > 0 {
		log.Debug("pruned cached listings", zap.Int("removed", n))
	}
}

// LoadBackupInput contains parameters for the LoadBackup operation.
type LoadBackupInput struct {
	Name    string // optional, default: newest backup
	Path    string // optional local backup file; bypasses the listing
	Refresh bool
}

// LoadedBackup is a decoded backup together with where it came from.
type LoadedBackup struct {
	File      source.File
	Snapshot  *backup.Snapshot
	FromCache bool
	Listing   *ListBackupsOutput // nil for local files
}

// LoadBackup resolves a backup by name and decodes it.
func LoadBackup(ctx context.Context, env *Env, input LoadBackupInput) (*LoadedBackup, error) {
	if input.Path != "" {
		return loadLocalBackup(env, input.Path)
	}

	listing, err := ListBackups(ctx, env, ListBackupsInput{Refresh: input.Refresh})
	if err != nil {
		return nil, err
	}
	if len(listing.Files) == 0 {
		return nil, errors.NewNoBackups()
	}

	file, err := pickBackup(listing.Files, input.Name)
	if err != nil {
		return nil, err
	}

	snap, fromCache, err := loadSnapshot(ctx, env, file)
	if err != nil {
		return nil, err
	}
	return &LoadedBackup{File: file, Snapshot: snap, FromCache: fromCache, Listing: listing}, nil
}

func pickBackup(files []source.File, name string) (source.File, error) {
	if name == "" {
		return files[0], nil
	}
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return source.File{}, errors.NewNotFound(name)
}

// loadSnapshot serves the body from cache when name and sha match, else downloads it.
func loadSnapshot(ctx context.Context, env *Env, file source.File) (*backup.Snapshot, bool, error) {
	log := env.log()

	cached, err := db.GetSnapshot(ctx, env.DB, file.Name, file.SHA)
	if err != nil {
		log.Warn("failed to read cached snapshot", zap.String("name", file.Name), zap.Error(err))
	}
	if cached != nil {
		snap, err := backup.Parse(cached.Body)
		if err == nil {
			metrics.ObserveSnapshotCache(true)
			return snap, true, nil
		}
		log.Warn("refetching cached snapshot", zap.String("name", file.Name), zap.Error(errors.NewCacheCorrupt(err)))
		metrics.ObserveFailure("cache_corrupt")
	}
	metrics.ObserveSnapshotCache(false)

	body, err := env.Source.Fetch(ctx, file)
	if err != nil {
		if cerr := checkCancelled(ctx, "load backup"); cerr != nil {
			return nil, false, cerr
		}
		metrics.ObserveFailure("snapshot")
		log.Error("failed to fetch backup", zap.String("name", file.Name), zap.Error(err))
		if !errors.Is(err, errors.ErrFetchFailed) {
			err = errors.NewFetchFailed(file.Name, err.Error())
		}
		return nil, false, err
	}

	snap, err := backup.Parse(body)
	if err != nil {
		metrics.ObserveFailure("snapshot")
		return nil, false, errors.NewFetchFailed(file.Name, errors.As(err).Message)
	}

	err = db.PutSnapshot(ctx, env.DB, &db.CachedSnapshot{
		Name:      file.Name,
		SHA:       file.SHA,
		Body:      body,
		FetchedAt: env.now().Unix(),
	})
	if err != nil {
		log.Warn("failed to cache snapshot", zap.String("name", file.Name), zap.Error(err))
	}
	return snap, false, nil
}

// loadLocalBackup reads a backup file from disk, subject to the export path rules.
func loadLocalBackup(env *Env, path string) (*LoadedBackup, error) {
	if err := ValidatePath(path, PathCheckRead, env.cfg()); err != nil {
		return nil, err
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.TimeError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	body, err := readAllLimited(f)
	if err != nil {
		return nil, err
	}
	snap, err := backup.Parse(body)
	if err != nil {
		return nil, err
	}

	file := source.File{Name: filepath.Base(path), Path: path, Size: info.Size(), Type: "file"}
	return &LoadedBackup{File: file, Snapshot: snap}, nil
}

// maxLocalBackupBytes caps a backup read from disk.
const maxLocalBackupBytes = 64 << 20

func readAllLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxLocalBackupBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(body) > maxLocalBackupBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("backup file exceeds %d bytes", maxLocalBackupBytes))
	}
	return body, nil
}
