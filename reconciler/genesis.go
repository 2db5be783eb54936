package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// newDonation handles a genesis event: the donation written off-ledger for
// this transaction is patched with the ledger view of the new note. If it
// is not visible yet the whole path runs again after the retry delay, and
// on the last attempt a missing donation is created.
func (r *Reconciler) newDonation(ctx context.Context, t transferArgs, attempt int) (Outcome, error) {
	note, err := r.note(ctx, t.To)
	if err != nil {
		return 0, err
	}

	var (
		owner    Owner
		donation *Donation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		owner, err = r.owner(gctx, note.Owner)
		return err
	})
	g.Go(func() (err error) {
		donation, err = r.findDonation(gctx, DonationQuery{TxHash: t.TxHash})
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	patch := genesisPatch(t, note, owner)

	if donation != nil {
		if _, err := r.donations.PatchDonation(ctx, donation.ID, patch); err != nil {
			return 0, fmt.Errorf("%w: patch donation %s: %w", ErrDonationWrite, donation.ID, err)
		}
		r.purge(ctx, t.To)
		return OutcomeApplied, nil
	}

	if !r.retry.isLast(attempt) {
		r.scheduleGenesis(ctx, t, attempt+1)
		return OutcomeRescheduled, nil
	}

	if err := r.createGenesis(ctx, t, note, owner, patch); err != nil {
		return 0, err
	}
	r.purge(ctx, t.To)
	return OutcomeApplied, nil
}

// createGenesis writes the donation the off-ledger path never did. A
// concurrent attempt for the same event may win the insert, in which case
// its record is patched instead.
func (r *Reconciler) createGenesis(ctx context.Context, t transferArgs, note Note, owner Owner, patch DonationPatch) error {
	_, err := r.donations.CreateDonation(ctx, NewDonation{
		Genesis:      true,
		TxHash:       t.TxHash,
		NoteID:       t.To,
		Amount:       t.Amount,
		Owner:        note.Owner,
		OwnerID:      owner.TypeID,
		OwnerType:    owner.Type,
		Status:       StatusWaiting,
		PaymentState: PaymentStateFromCode(note.PaymentState),
		CreatedAt:    t.Timestamp,
		DonorAddress: owner.Address,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDuplicateDonation) {
		return fmt.Errorf("%w: create donation for note %s: %w", ErrDonationWrite, t.To, err)
	}

	existing, err := r.findDonation(ctx, DonationQuery{NoteID: t.To, TxHash: t.TxHash})
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: note %s tx %s reported duplicate but not found", ErrDonationLookup, t.To, t.TxHash)
	}
	if _, err := r.donations.PatchDonation(ctx, existing.ID, patch); err != nil {
		return fmt.Errorf("%w: patch donation %s: %w", ErrDonationWrite, existing.ID, err)
	}
	return nil
}

// scheduleGenesis runs the genesis path again once the retry delay has
// elapsed. The retry is detached from the caller's cancellation and
// reports its failure through the logger.
func (r *Reconciler) scheduleGenesis(ctx context.Context, t transferArgs, attempt int) {
	ctx = context.WithoutCancel(ctx)

	r.scheduled.Add(1)
	go func() {
		defer r.scheduled.Done()

		<-r.clock.After(r.retry.Delay)

		outcome, err := r.newDonation(ctx, t, attempt)
		if err != nil {
			r.log.ErrorContext(ctx, "Genesis retry failed",
				slog.String("noteID", t.To.String()),
				slog.String("txHash", t.TxHash),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return
		}

		r.log.DebugContext(ctx, "Genesis retry done",
			slog.String("noteID", t.To.String()),
			slog.String("outcome", outcome.String()),
		)
	}()
}

func genesisPatch(t transferArgs, note Note, owner Owner) DonationPatch {
	return DonationPatch{
		DonorAddress: ptr(owner.Address),
		Amount:       ptr(t.Amount),
		NoteID:       ptr(t.To),
		CreatedAt:    ptr(t.Timestamp),
		Owner:        ptr(note.Owner),
		OwnerID:      ptr(owner.TypeID),
		OwnerType:    ptr(owner.Type),
		Status:       ptr(StatusWaiting),
		PaymentState: ptr(PaymentStateFromCode(note.PaymentState)),
	}
}
