// ABOUTME: Store interface for tune persistence
// ABOUTME: Defines the keyed record operations the rest of the system depends on

package store

import (
	"context"
	"errors"
	"time"

	"github.com/machinefolk/composer-gateway/internal/tune"
)

// ErrNotFound is returned when a requested tune does not exist.
var ErrNotFound = errors.New("not found")

// ErrFinished is returned when mutating a tune whose generation has finished.
var ErrFinished = errors.New("tune already finished")

// Store defines the interface for tune persistence.
//
// The accumulated ABC of a tune is only ever written by the generation
// service driving that tune; sessions read it once at registration time and
// otherwise follow channel events.
type Store interface {
	// CreateTune persists a new tune and assigns its ID. The ID is set on
	// the passed record and never changes afterwards.
	CreateTune(ctx context.Context, t *tune.Tune) error

	// GetTune retrieves a tune by ID, or ErrNotFound.
	GetTune(ctx context.Context, id int64) (*tune.Tune, error)

	// CountTunes returns the total number of tune records.
	CountTunes(ctx context.Context) (int, error)

	// MarkStarted records the generation start timestamp.
	MarkStarted(ctx context.Context, id int64, at time.Time) error

	// UpdateABC replaces the accumulated ABC text. The new text must extend
	// the stored one; a finished tune is immutable (ErrFinished).
	UpdateABC(ctx context.Context, id int64, abc string) error

	// MarkFinished records the final ABC and the finish timestamp.
	MarkFinished(ctx context.Context, id int64, abc string, at time.Time) error

	// Close releases any resources held by the store.
	Close() error
}
