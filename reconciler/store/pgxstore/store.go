package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/pledger/pkg/pgxdb"
	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed       = errors.New("donation query failed")
	ErrInsertFailed      = errors.New("insert operation failed")
	ErrUpdateFailed      = errors.New("update operation failed")
	ErrUnboundedQuery    = errors.New("donation query needs a note or a transaction")
	ErrDonationNotFound  = errors.New("donation not found")
	ErrOwnerNotFound     = errors.New("note manager not found")
	ErrOwnerQueryFailed  = errors.New("note manager query failed")
	ErrOwnerUpsertFailed = errors.New("note manager upsert failed")
)

// SQL queries
const (
	insertDonationSQL = `
		INSERT INTO donations (id, tx_hash, note_id, genesis_note_id, amount, owner, owner_id, owner_type,
			status, payment_state, proposed_project, donor_address, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, CURRENT_TIMESTAMP))
		RETURNING ` + dbrow.DonationColumns

	insertHistorySQL = `
		INSERT INTO donation_history (id, donation_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text AS id, donation_id::text AS donation_id, status, created_at`

	selectOwnerSQL = `SELECT id, type, type_id, address FROM note_managers WHERE id = $1`

	upsertOwnerSQL = `
		INSERT INTO note_managers (id, type, type_id, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, type_id = EXCLUDED.type_id, address = EXCLUDED.address`
)

// Store implements the reconciler's Donations and Owners using pgx
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

// FindDonations returns the donations matching every non-empty field of q,
// oldest first
func (s *Store) FindDonations(ctx context.Context, q reconciler.DonationQuery) ([]reconciler.Donation, error) {
	if q.NoteID == "" && q.TxHash == "" {
		return nil, ErrUnboundedQuery
	}

	query, args := NewDonationsQuery().ForQuery(q).Build()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Donation])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	donations := make([]reconciler.Donation, 0, len(found))
	for _, row := range found {
		d, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		donations = append(donations, d)
	}

	return donations, nil
}

// CreateDonation inserts a donation with a fresh identifier. A second
// genesis record for the same note and transaction is rejected with
// reconciler.ErrDuplicateDonation.
func (s *Store) CreateDonation(ctx context.Context, d reconciler.NewDonation) (reconciler.Donation, error) {
	var genesisNoteID *string
	if d.Genesis {
		genesisNoteID = new(string)
		*genesisNoteID = d.NoteID.String()
	}

	var createdAt *time.Time
	if !d.CreatedAt.IsZero() {
		createdAt = &d.CreatedAt
	}

	status := d.Status
	if status == "" {
		status = reconciler.StatusWaiting
	}
	paymentState := d.PaymentState
	if paymentState == "" {
		paymentState = reconciler.PaymentNotPaid
	}

	rows, err := s.pool.Query(ctx, insertDonationSQL,
		uuid.New(),
		d.TxHash,
		d.NoteID.String(),
		genesisNoteID,
		d.Amount.String(),
		d.Owner,
		d.OwnerID,
		string(d.OwnerType),
		string(status),
		string(paymentState),
		d.ProposedProject,
		d.DonorAddress,
		createdAt,
	)
	if err == nil {
		var row dbrow.Donation
		row, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.Donation])
		if err == nil {
			return row.ToDomain()
		}
	}
	if pgxdb.IsUniqueViolation(err) {
		return reconciler.Donation{}, fmt.Errorf("%w: note %s tx %s: %w", reconciler.ErrDuplicateDonation, d.NoteID, d.TxHash, err)
	}
	return reconciler.Donation{}, fmt.Errorf("%w: %w", ErrInsertFailed, err)
}

// PatchDonation updates the non-nil fields of p and returns the new state
func (s *Store) PatchDonation(ctx context.Context, id string, p reconciler.DonationPatch) (reconciler.Donation, error) {
	query, args := NewDonationPatch(p).Build(id)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return reconciler.Donation{}, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.Donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return reconciler.Donation{}, fmt.Errorf("%w: %s", ErrDonationNotFound, id)
	}
	if err != nil {
		return reconciler.Donation{}, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	return row.ToDomain()
}

// CreateHistory appends a history entry to a donation
func (s *Store) CreateHistory(ctx context.Context, donationID string, e reconciler.HistoryEntry) (reconciler.HistoryEntry, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	rows, err := s.pool.Query(ctx, insertHistorySQL, uuid.New(), donationID, string(e.Status), createdAt)
	if err != nil {
		return reconciler.HistoryEntry{}, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.History])
	if err != nil {
		return reconciler.HistoryEntry{}, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}

	return row.ToDomain(), nil
}

// GetOwner reads a note manager by its ledger reference
func (s *Store) GetOwner(ctx context.Context, id string) (reconciler.Owner, error) {
	rows, err := s.pool.Query(ctx, selectOwnerSQL, id)
	if err != nil {
		return reconciler.Owner{}, fmt.Errorf("%w: %w", ErrOwnerQueryFailed, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.NoteManager])
	if errors.Is(err, pgx.ErrNoRows) {
		return reconciler.Owner{}, fmt.Errorf("%w: %s", ErrOwnerNotFound, id)
	}
	if err != nil {
		return reconciler.Owner{}, fmt.Errorf("%w: %w", ErrOwnerQueryFailed, err)
	}

	return row.ToDomain(), nil
}

// SaveOwner creates or replaces a note manager
func (s *Store) SaveOwner(ctx context.Context, o reconciler.Owner) error {
	_, err := s.pool.Exec(ctx, upsertOwnerSQL, o.ID, string(o.Type), o.TypeID, o.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOwnerUpsertFailed, err)
	}
	return nil
}
