// Package scraper follows the ledger Transfer event log and feeds every
// event, in id order, to the donation reconciler.
//
// It runs in two phases: a backfill that drains the log from the stored
// checkpoint, then live polling.
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/pledger/pkg/clock"
	"github.com/screwyprof/pledger/pkg/ledger"
	"github.com/screwyprof/pledger/reconciler"
)

// Sentinel errors for failure cases
var (
	ErrCheckpointRetrieval = errors.New("checkpoint retrieval failed")
	ErrAPIRequestFailed    = errors.New("API request failed")
	ErrSaveCheckpoint      = errors.New("save checkpoint failed")
	ErrTransferFailed      = errors.New("transfer reconciliation failed")
)

// Default configuration values
const (
	DefaultChunkSize    = uint64(1000)
	DefaultPollInterval = 10 * time.Second
)

// Client fetches Transfer events from the ledger gateway
// ------------------------------------------------------
type Client interface {
	GetTransfers(ctx context.Context, req ledger.TransfersRequest) ([]ledger.TransferEvent, error)
}

// Reconciler applies a single Transfer event to the donation store
type Reconciler interface {
	Transfer(ctx context.Context, event reconciler.TransferEvent) (reconciler.Outcome, error)
}

// Store persists the id of the last handled event
type Store interface {
	// LastProcessedID returns the id of the last handled event
	LastProcessedID(ctx context.Context) (int64, error)
	// SaveCheckpoint records id as the last handled event
	SaveCheckpoint(ctx context.Context, id int64) error
}

// Tally counts the outcomes of the events handled in a batch
type Tally struct {
	Applied     int
	Deferred    int
	Rescheduled int
	Failed      int
}

func (t *Tally) add(outcome reconciler.Outcome, err error) {
	if err != nil {
		t.Failed++
		return
	}
	switch outcome {
	case reconciler.OutcomeApplied:
		t.Applied++
	case reconciler.OutcomeDeferred:
		t.Deferred++
	case reconciler.OutcomeRescheduled:
		t.Rescheduled++
	}
}

// SyncResult contains the results of a sync batch operation
type SyncResult struct {
	Count        int
	CheckpointID int64
	Tally        Tally
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock = clock.Clock

// Event represents a service lifecycle event
// ------------------------------------------
type Event any

type BackfillDone struct {
	TotalProcessed int64
	Duration       time.Duration
}

type BackfillStarted struct {
	StartedAt    time.Time
	CheckpointID int64
}

type BackfillSyncCompleted struct {
	Fetched      int
	CheckpointID int64
	ChunkSize    uint64
	Tally        Tally
}

type BackfillError struct {
	Err error
}

type PollingSyncCompleted struct {
	Fetched      int
	CheckpointID int64
	ChunkSize    uint64
	Tally        Tally
}

type PollingStarted struct {
	Interval time.Duration
}

type PollingShutdown struct {
	Reason error // Why shutdown occurred (ctx.Err())
}

type PollingError struct {
	Err error
}

// TransferFailed reports an event the reconciler rejected. The scraper moves
// past it.
type TransferFailed struct {
	EventID int64
	TxHash  string
	Err     error
}
