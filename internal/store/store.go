// Package store defines the persistence interface for the journal engine.
// Implementations include PostgreSQL and SQLite (sources of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tjournal/journal-engine/internal/model"
)

// ErrNotFound is returned when no trade row matches an id.
var ErrNotFound = errors.New("store: trade not found")

// Store is the persistence interface for trades.
type Store interface {
	// List returns all trades that have not been soft-deleted.
	List(ctx context.Context) ([]model.Trade, error)

	// Get retrieves a trade by id, including soft-deleted ones.
	Get(ctx context.Context, id int64) (*model.Trade, error)

	// Insert assigns a new id, persists the trade and returns the stored record.
	Insert(ctx context.Context, trade *model.Trade) (*model.Trade, error)

	// Replace overwrites every field of an existing trade, keeping its id
	// and deletion marker.
	Replace(ctx context.Context, id int64, trade *model.Trade) (*model.Trade, error)

	// SoftDelete marks a trade as deleted at the given time.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}
