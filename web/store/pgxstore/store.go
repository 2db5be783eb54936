package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/store/dbrow"
	"github.com/screwyprof/pledger/web/donations"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed = errors.New("donation query failed")
)

// SQL queries
const (
	donationExistsSQL = `SELECT EXISTS (SELECT 1 FROM donations WHERE id = $1)`

	selectHistorySQL = `
		SELECT id::text AS id, donation_id::text AS donation_id, status, created_at
		FROM donation_history
		WHERE donation_id = $1
		ORDER BY created_at, id`
)

// DonationsFinder implements donation querying using pgx
type DonationsFinder struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL donations finder with an existing connection pool
// Returns the finder and a closer function
func New(pool *pgxpool.Pool) (*DonationsFinder, func()) {
	finder := &DonationsFinder{pool: pool}
	closer := func() {
		pool.Close()
	}
	return finder, closer
}

// FindDonations lists donations matching the criteria, most recent first.
// Uses LIMIT n+1 to detect further pages without a count query.
func (f *DonationsFinder) FindDonations(ctx context.Context, criteria donations.Criteria) (*donations.Page, error) {
	query, args := NewDonationsQuery().ForCriteria(criteria).Build()

	rows, err := f.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Donation])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	result := make([]reconciler.Donation, 0, len(dbRows))
	for _, row := range dbRows {
		d, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		result = append(result, d)
	}

	hasMore := uint64(len(result)) > criteria.ItemsPerPage()
	if hasMore {
		// drop the extra record fetched for "has more" detection
		result = result[:criteria.ItemsPerPage()]
	}

	return &donations.Page{
		Donations: result,
		HasMore:   hasMore,
		Number:    criteria.Page,
		Size:      criteria.Size,
	}, nil
}

// FindHistory returns the history of a donation, oldest first
func (f *DonationsFinder) FindHistory(ctx context.Context, donationID string) ([]reconciler.HistoryEntry, error) {
	var exists bool
	if err := f.pool.QueryRow(ctx, donationExistsSQL, donationID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", donations.ErrDonationNotFound, donationID)
	}

	rows, err := f.pool.Query(ctx, selectHistorySQL, donationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.History])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	entries := make([]reconciler.HistoryEntry, len(dbRows))
	for i, row := range dbRows {
		entries[i] = row.ToDomain()
	}

	return entries, nil
}
