package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for store operations
var (
	ErrCheckpointFailed      = errors.New("checkpoint update failed")
	ErrLastProcessedIDFailed = errors.New("failed to get last processed ID")
)

// Store implements scraper.Store using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// LastProcessedID returns the id of the last handled Transfer event (checkpoint)
func (s *Store) LastProcessedID(ctx context.Context) (int64, error) {
	var lastID int64
	err := s.pool.QueryRow(ctx, "SELECT COALESCE(last_id, 0) FROM scraper_checkpoint").Scan(&lastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLastProcessedIDFailed, err)
	}
	return lastID, nil
}

// SaveCheckpoint records id as the last handled event. The checkpoint never
// moves backwards.
func (s *Store) SaveCheckpoint(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scraper_checkpoint (single_row, last_id) VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET last_id = GREATEST(scraper_checkpoint.last_id, EXCLUDED.last_id)
	`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointFailed, err)
	}
	return nil
}
