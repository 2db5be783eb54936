package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Action is a deferred continuation waiting on a donation record
type Action func(ctx context.Context) error

// number of queue shards, must be a power of 2
const (
	queueShards = 16
	queueMask   = queueShards - 1
)

// lockable map of pending actions
type queueShard struct {
	sync.Mutex
	table map[NoteID][]Action
}

// PendingTransfers buffers continuations per note until the donation they
// depend on exists. Keys are spread over independently locked shards, so
// Add and Purge on the same note are serialised while different notes
// rarely contend.
type PendingTransfers struct {
	shards [queueShards]queueShard
}

// NewPendingTransfers creates an empty queue
func NewPendingTransfers() *PendingTransfers {
	q := &PendingTransfers{}
	for i := range q.shards {
		q.shards[i].table = make(map[NoteID][]Action)
	}
	return q
}

func (q *PendingTransfers) shard(key NoteID) *queueShard {
	return &q.shards[xxhash.Sum64String(string(key))&queueMask]
}

// Add appends action to the queue of key without running it
func (q *PendingTransfers) Add(key NoteID, action Action) {
	s := q.shard(key)
	s.Lock()
	defer s.Unlock()

	s.table[key] = append(s.table[key], action)
}

// Purge removes the queue of key and runs its actions in FIFO order.
// Every action runs even if an earlier one fails; the failures are
// joined into the returned error. Purging an empty key is a no-op.
func (q *PendingTransfers) Purge(ctx context.Context, key NoteID) error {
	s := q.shard(key)
	s.Lock()
	actions := s.table[key]
	delete(s.table, key)
	s.Unlock()

	var errs []error
	for i, action := range actions {
		if err := runAction(ctx, action); err != nil {
			errs = append(errs, fmt.Errorf("%w: note %s #%d: %w", ErrDeferredTransfer, key, i, err))
		}
		actions[i] = nil
	}

	return errors.Join(errs...)
}

// runAction isolates a panicking continuation from the rest of the purge
func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return action(ctx)
}

// Len returns the number of actions waiting on key
func (q *PendingTransfers) Len(key NoteID) int {
	s := q.shard(key)
	s.Lock()
	defer s.Unlock()

	return len(s.table[key])
}

// Keys returns the notes that have waiting actions, sorted
func (q *PendingTransfers) Keys() []NoteID {
	var keys []NoteID
	for i := range q.shards {
		s := &q.shards[i]
		s.Lock()
		for k := range s.table {
			keys = append(keys, k)
		}
		s.Unlock()
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
