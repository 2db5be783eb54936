// Package reconciler keeps the donation record store faithful to the
// ledger's note Transfer events.
//
// Events may reach the reconciler before the donation they refer to has
// been written. A genesis event whose donation is not yet visible is
// retried once after a delay; a transfer whose source donation is missing
// is parked in a per-note queue and resumed when that donation appears.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/screwyprof/pledger/pkg/clock"
)

// Sentinel errors for failure cases
var (
	ErrNotTransferEvent  = errors.New("transfer only handles Transfer events")
	ErrInvalidEvent      = errors.New("invalid transfer event")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrBlockTimestamp    = errors.New("block timestamp lookup failed")
	ErrLedgerRead        = errors.New("ledger read failed")
	ErrOwnerLookup       = errors.New("owner lookup failed")
	ErrDonationLookup    = errors.New("donation lookup failed")
	ErrDonationWrite     = errors.New("donation write failed")
	ErrHistoryWrite      = errors.New("donation history write failed")
	ErrDeferredTransfer  = errors.New("deferred transfer failed")
	ErrDuplicateDonation = errors.New("donation already exists")
)

// Ledger reads note state from the ledger
// ---------------------------------------
type Ledger interface {
	GetNote(ctx context.Context, id NoteID) (Note, error)
	// GetNoteDelegate returns the delegate at 1-based index in the note's chain
	GetNoteDelegate(ctx context.Context, id NoteID, index uint64) (Delegate, error)
}

// Owners resolves ledger owner references
type Owners interface {
	GetOwner(ctx context.Context, id string) (Owner, error)
}

// Donations is the record store the reconciler writes to
type Donations interface {
	FindDonations(ctx context.Context, q DonationQuery) ([]Donation, error)
	// CreateDonation returns an error wrapping ErrDuplicateDonation if a
	// donation with the same note and transaction already exists.
	CreateDonation(ctx context.Context, d NewDonation) (Donation, error)
	PatchDonation(ctx context.Context, id string, p DonationPatch) (Donation, error)
	CreateHistory(ctx context.Context, donationID string, e HistoryEntry) (HistoryEntry, error)
}

// Clock schedules the genesis retry
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// Outcome tells how an event was handled
// --------------------------------------
type Outcome int

const (
	// OutcomeApplied means the record store now reflects the event
	OutcomeApplied Outcome = iota + 1
	// OutcomeDeferred means the event waits for its source donation
	OutcomeDeferred
	// OutcomeRescheduled means the genesis donation was not visible yet
	// and the event will be handled again after the retry delay
	OutcomeRescheduled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeRescheduled:
		return "rescheduled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RetryPolicy bounds the genesis lookup. Attempts counts the first try;
// after the last attempt a missing donation is created instead.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultGenesisRetry looks once more after five seconds
var DefaultGenesisRetry = RetryPolicy{Attempts: 2, Delay: 5 * time.Second}

func (p RetryPolicy) isLast(attempt int) bool {
	return attempt >= p.Attempts
}

// Option configures the Reconciler
// --------------------------------
type Option func(*Reconciler)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithGenesisRetry overrides the genesis retry policy
func WithGenesisRetry(p RetryPolicy) Option {
	return func(r *Reconciler) { r.retry = p }
}

// WithBlockCacheSize sets how many block timestamps are kept
func WithBlockCacheSize(n int) Option {
	return func(r *Reconciler) { r.blockCacheSize = n }
}

// WithLogger sets the logger used for work that runs detached from a caller
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// Reconciler classifies transfer events and applies them to the record store
// --------------------------------------------------------------------------
type Reconciler struct {
	ledger    Ledger
	owners    Owners
	donations Donations

	blocks *BlockTimes
	queue  *PendingTransfers

	clock          Clock
	retry          RetryPolicy
	blockCacheSize int
	log            *slog.Logger

	scheduled sync.WaitGroup
}

// New constructs a Reconciler with required dependencies and options.
// By default it uses a real clock, DefaultGenesisRetry and a 50 block cache.
func New(ledger Ledger, blocks BlockFetcher, owners Owners, donations Donations, opts ...Option) *Reconciler {
	r := &Reconciler{
		ledger:         ledger,
		owners:         owners,
		donations:      donations,
		queue:          NewPendingTransfers(),
		clock:          clock.SystemClock{},
		retry:          DefaultGenesisRetry,
		blockCacheSize: DefaultBlockCacheSize,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.blocks = NewBlockTimes(blocks, r.blockCacheSize)
	return r
}

// Transfer handles a ledger Transfer event.
//
// Events that are not Transfer events are rejected with ErrNotTransferEvent
// before any I/O. Otherwise the event is stamped with its block time and
// routed to the genesis or the continuation path.
func (r *Reconciler) Transfer(ctx context.Context, event TransferEvent) (Outcome, error) {
	if err := validateEvent(event); err != nil {
		return 0, err
	}

	amount, err := ParseAmount(event.ReturnValues.Amount)
	if err != nil {
		return 0, err
	}

	ts, err := r.blocks.Resolve(ctx, event.BlockNumber)
	if err != nil {
		return 0, err
	}

	t := transferArgs{
		From:      event.ReturnValues.From,
		To:        event.ReturnValues.To,
		Amount:    amount,
		Timestamp: ts,
		TxHash:    event.TransactionHash,
	}

	if event.IsGenesis() {
		return r.newDonation(ctx, t, 1)
	}
	return r.transfer(ctx, t)
}

// Wait blocks until every scheduled genesis retry has finished
func (r *Reconciler) Wait() {
	r.scheduled.Wait()
}

// PendingNotes returns the notes that have transfers waiting on them
func (r *Reconciler) PendingNotes() []NoteID {
	return r.queue.Keys()
}

// transferArgs is the block-stamped content of a Transfer event
type transferArgs struct {
	From      NoteID
	To        NoteID
	Amount    Amount
	Timestamp time.Time
	TxHash    string
}

func (r *Reconciler) note(ctx context.Context, id NoteID) (Note, error) {
	n, err := r.ledger.GetNote(ctx, id)
	if err != nil {
		return Note{}, fmt.Errorf("%w: note %s: %w", ErrLedgerRead, id, err)
	}
	return n, nil
}

func (r *Reconciler) owner(ctx context.Context, id string) (Owner, error) {
	o, err := r.owners.GetOwner(ctx, id)
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %s: %w", ErrOwnerLookup, id, err)
	}
	return o, nil
}

// findDonation returns the first donation matching q, or nil
func (r *Reconciler) findDonation(ctx context.Context, q DonationQuery) (*Donation, error) {
	found, err := r.donations.FindDonations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDonationLookup, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// purge resumes the transfers waiting on note. Their failures belong to
// other events, so they are logged rather than returned.
func (r *Reconciler) purge(ctx context.Context, note NoteID) {
	if err := r.queue.Purge(ctx, note); err != nil {
		r.log.ErrorContext(ctx, "Deferred transfer failed",
			slog.String("noteID", note.String()),
			slog.Any("error", err),
		)
	}
}
