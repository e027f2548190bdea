package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/db"
)

// ClearCacheOutput contains the result of the ClearCache operation.
type ClearCacheOutput struct {
	Removed int `json:"removed"`
}

// ClearCache removes cached listings and snapshot bodies.
func ClearCache(ctx context.Context, env *Env) (*ClearCacheOutput, error) {
	n, err := db.ClearCache(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	env.log().Info("cache cleared", zap.Int("removed", n))
	return &ClearCacheOutput{Removed: n}, nil
}

// CacheStatusOutput describes what is cached.
type CacheStatusOutput struct {
	db.Stats
	ListingFetchedAt int64 `json:"listing_fetched_at,omitempty"`
	ListingFresh     bool  `json:"listing_fresh"`
}

// CacheStatus reports cache row counts and the age of the newest listing.
func CacheStatus(ctx context.Context, env *Env) (*CacheStatusOutput, error) {
	stats, err := db.GetStats(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	out := &CacheStatusOutput{Stats: *stats}

	latest, err := db.GetLatestListing(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		out.ListingFetchedAt = latest.FetchedAt
		out.ListingFresh = env.now().Sub(time.Unix(latest.FetchedAt, 0)) < env.cfg().CacheTTL()
	}
	return out, nil
}
