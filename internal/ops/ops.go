package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/suwonj/timeofme/internal/config"
	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/logging"
	"github.com/suwonj/timeofme/internal/source"
)

// Cache and timeline limits
const (
	ListingsKept         = 10
	ShortIntervalSeconds = 600
	BaseEntryHeightPx    = 45.0
	HeightPxPerMinute    = 0.2
)

// Listing sources reported by ListBackups.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
	SourceStale  = "stale"
)

// Env carries the dependencies shared by every operation.
type Env struct {
	DB     *sql.DB
	Source source.Source
	Config *config.Config
	Logger *zap.Logger

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) log() *zap.Logger {
	return logging.OrNop(e.Logger)
}

func (e *Env) cfg() *config.Config {
	if e.Config == nil {
		return config.DefaultConfig()
	}
	return e.Config
}

func (e *Env) location() *time.Location {
	return e.cfg().Location()
}

// checkCancelled returns a CANCELLED error once ctx is done.
func checkCancelled(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return errors.NewCancelled(op)
	}
	return nil
}

// generateULID generates a new ULID stamped with now.
func generateULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
