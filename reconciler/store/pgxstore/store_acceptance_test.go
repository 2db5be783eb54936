//go:build acceptance

package pgxstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/pledger/pkg/logger"
	"github.com/screwyprof/pledger/pkg/pgxdb/pgxdbtest"
	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/store/pgxstore"
)

const migrationsDir = "../../../migrator/migrations"

// TestStoreAcceptanceBehavior tests the donation store against PostgreSQL
func TestStoreAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it creates and finds donations by note and transaction", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		created, err := store.CreateDonation(t.Context(), newDonation("42", "0xabc", "1000000000000000000000"))
		require.NoError(t, err)

		// Act
		found, err := store.FindDonations(t.Context(), reconciler.DonationQuery{NoteID: "42", TxHash: "0xabc"})

		// Assert
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, created.ID, found[0].ID)
		assert.Equal(t, "1000000000000000000000", found[0].Amount.String(), "NUMERIC precision should survive")
		assert.Equal(t, reconciler.StatusWaiting, found[0].Status)
	})

	t.Run("it rejects a second genesis record for the same note and transaction", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		d := newDonation("42", "0xabc", "100")
		d.Genesis = true
		_, err := store.CreateDonation(t.Context(), d)
		require.NoError(t, err)

		// Act
		_, err = store.CreateDonation(t.Context(), d)

		// Assert
		require.ErrorIs(t, err, reconciler.ErrDuplicateDonation)
	})

	t.Run("it allows several split records in one transaction", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)

		// Act
		_, err1 := store.CreateDonation(t.Context(), newDonation("43", "0xabc", "10"))
		_, err2 := store.CreateDonation(t.Context(), newDonation("43", "0xabc", "20"))

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
	})

	t.Run("it patches only the given fields", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		created, err := store.CreateDonation(t.Context(), newDonation("42", "0xabc", "100"))
		require.NoError(t, err)

		noteID := reconciler.NoteID("43")
		amount := reconciler.MustParseAmount("60")
		updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

		// Act
		patched, err := store.PatchDonation(t.Context(), created.ID, reconciler.DonationPatch{
			NoteID:    &noteID,
			Amount:    &amount,
			UpdatedAt: &updated,
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, noteID, patched.NoteID)
		assert.Equal(t, "60", patched.Amount.String())
		assert.True(t, updated.Equal(patched.UpdatedAt))
		assert.Equal(t, created.DonorAddress, patched.DonorAddress, "Untouched fields should be kept")
	})

	t.Run("it reports a missing donation on patch", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		status := reconciler.StatusCommitted

		// Act
		_, err := store.PatchDonation(t.Context(), "00000000-0000-0000-0000-000000000000", reconciler.DonationPatch{Status: &status})

		// Assert
		require.ErrorIs(t, err, pgxstore.ErrDonationNotFound)
	})

	t.Run("it appends history entries", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		created, err := store.CreateDonation(t.Context(), newDonation("42", "0xabc", "100"))
		require.NoError(t, err)

		// Act
		entry, err := store.CreateHistory(t.Context(), created.ID, reconciler.HistoryEntry{
			Status:    reconciler.HistoryPaymentCompleted,
			CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		})

		// Assert
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, created.ID, entry.DonationID)
		assert.Equal(t, reconciler.HistoryPaymentCompleted, entry.Status)
	})

	t.Run("it resolves note managers", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		want := reconciler.Owner{ID: "7", Type: reconciler.OwnerProject, TypeID: "p-7", Address: "0x7"}
		require.NoError(t, store.SaveOwner(t.Context(), want))

		// Act
		got, err := store.GetOwner(t.Context(), "7")
		_, missingErr := store.GetOwner(t.Context(), "8")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.ErrorIs(t, missingErr, pgxstore.ErrOwnerNotFound)
	})
}

// TestReconcilerWithStoreAcceptance runs the reconciler against the real store
func TestReconcilerWithStoreAcceptance(t *testing.T) {
	t.Parallel()

	t.Run("it splits a donation into a sibling record", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := createStore(t)
		require.NoError(t, store.SaveOwner(t.Context(), reconciler.Owner{ID: "1", Type: reconciler.OwnerUser, TypeID: "u-1", Address: "0xd0n0r"}))
		require.NoError(t, store.SaveOwner(t.Context(), reconciler.Owner{ID: "2", Type: reconciler.OwnerProject, TypeID: "p-2"}))

		original, err := store.CreateDonation(t.Context(), reconciler.NewDonation{
			TxHash:       "0xabc",
			NoteID:       "42",
			Amount:       reconciler.MustParseAmount("100"),
			DonorAddress: "0xd0n0r",
		})
		require.NoError(t, err)

		ledger := staticLedger{
			"42": {ID: "42", Owner: "1", PaymentState: "0"},
			"43": {ID: "43", Owner: "2", PaymentState: "0"},
		}
		r := reconciler.New(ledger, staticBlocks{}, store, store,
			reconciler.WithLogger(logger.Discard()))

		// Act
		outcome, err := r.Transfer(t.Context(), reconciler.TransferEvent{
			Event:           reconciler.TransferEventName,
			ReturnValues:    reconciler.ReturnValues{From: "42", To: "43", Amount: "40"},
			BlockNumber:     10,
			TransactionHash: "0xabc",
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, reconciler.OutcomeApplied, outcome)

		remaining, err := store.FindDonations(t.Context(), reconciler.DonationQuery{NoteID: "42", TxHash: "0xabc"})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, original.ID, remaining[0].ID)
		assert.Equal(t, "60", remaining[0].Amount.String())

		sibling, err := store.FindDonations(t.Context(), reconciler.DonationQuery{NoteID: "43", TxHash: "0xabc"})
		require.NoError(t, err)
		require.Len(t, sibling, 1)
		assert.Equal(t, "40", sibling[0].Amount.String())
		assert.Equal(t, reconciler.StatusCommitted, sibling[0].Status)
		assert.Equal(t, "0xd0n0r", sibling[0].DonorAddress)
	})
}

// Test setup helpers

func createStore(t *testing.T) *pgxstore.Store {
	t.Helper()

	pool, _ := pgxdbtest.CreateTestDatabase(t, migrationsDir)
	store, closer := pgxstore.New(pool)
	t.Cleanup(closer)

	return store
}

func newDonation(noteID, tx, amount string) reconciler.NewDonation {
	return reconciler.NewDonation{
		TxHash:       tx,
		NoteID:       reconciler.NoteID(noteID),
		Amount:       reconciler.MustParseAmount(amount),
		Owner:        "1",
		OwnerID:      "u-1",
		OwnerType:    reconciler.OwnerUser,
		Status:       reconciler.StatusWaiting,
		PaymentState: reconciler.PaymentNotPaid,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DonorAddress: "0xd0n0r",
	}
}

// Mock implementations

type staticLedger map[reconciler.NoteID]reconciler.Note

func (l staticLedger) GetNote(_ context.Context, id reconciler.NoteID) (reconciler.Note, error) {
	return l[id], nil
}

func (l staticLedger) GetNoteDelegate(context.Context, reconciler.NoteID, uint64) (reconciler.Delegate, error) {
	return reconciler.Delegate{}, nil
}

type staticBlocks struct{}

func (staticBlocks) GetBlock(_ context.Context, number uint64) (reconciler.Block, error) {
	return reconciler.Block{Number: number, Timestamp: 1_700_000_000}, nil
}
