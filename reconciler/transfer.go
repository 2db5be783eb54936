package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// resolvedTransfer is everything needed to apply a continuation
type resolvedTransfer struct {
	transferArgs

	fromNote  Note
	toNote    Note
	fromOwner Owner
	toOwner   Owner

	delegate        *Owner
	proposedProject *Owner
}

// transfer handles a move between two existing notes. The ledger side is
// resolved up front; if the donation held by the source note is not
// recorded yet, applying the move is parked until that note is purged.
func (r *Reconciler) transfer(ctx context.Context, t transferArgs) (Outcome, error) {
	rt := &resolvedTransfer{transferArgs: t}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rt.fromNote, err = r.note(gctx, t.From)
		return err
	})
	g.Go(func() (err error) {
		rt.toNote, err = r.note(gctx, t.To)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	query := DonationQuery{NoteID: t.From, TxHash: t.TxHash}

	var donation *Donation

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rt.fromOwner, err = r.owner(gctx, rt.fromNote.Owner)
		return err
	})
	g.Go(func() (err error) {
		rt.toOwner, err = r.owner(gctx, rt.toNote.Owner)
		return err
	})
	g.Go(func() (err error) {
		donation, err = r.findDonation(gctx, query)
		return err
	})
	if rt.toNote.HasDelegates() {
		g.Go(func() error {
			// only the most recent delegate may act on the note
			d, err := r.ledger.GetNoteDelegate(gctx, t.To, rt.toNote.NDelegates)
			if err != nil {
				return fmt.Errorf("%w: delegate %d of note %s: %w", ErrLedgerRead, rt.toNote.NDelegates, t.To, err)
			}
			o, err := r.owner(gctx, d.IDDelegate)
			if err != nil {
				return err
			}
			rt.delegate = &o
			return nil
		})
	}
	if rt.toNote.HasProposedProject() {
		g.Go(func() error {
			o, err := r.owner(gctx, rt.toNote.ProposedProject)
			if err != nil {
				return err
			}
			rt.proposedProject = &o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if donation != nil {
		if err := r.apply(ctx, rt, *donation); err != nil {
			return 0, err
		}
		return OutcomeApplied, nil
	}

	r.queue.Add(t.From, func(ctx context.Context) error {
		donation, err := r.findDonation(ctx, query)
		if err != nil {
			return err
		}
		if donation == nil {
			return fmt.Errorf("%w: no donation for note %s in tx %s", ErrDonationLookup, t.From, t.TxHash)
		}
		return r.apply(ctx, rt, *donation)
	})

	// The source donation may have landed, and its purge run, between the
	// lookup above and Add. Look again so the parked move is not stranded.
	donation, err := r.findDonation(ctx, query)
	if err != nil {
		r.log.WarnContext(ctx, "Recheck of parked transfer failed",
			slog.String("noteID", t.From.String()),
			slog.Any("error", err),
		)
		return OutcomeDeferred, nil
	}
	if donation == nil {
		return OutcomeDeferred, nil
	}

	r.purge(ctx, t.From)
	return OutcomeApplied, nil
}

// apply moves the whole donation when the amounts match and splits it
// otherwise
func (r *Reconciler) apply(ctx context.Context, rt *resolvedTransfer, donation Donation) error {
	if donation.Amount.Equal(rt.Amount) {
		return r.moveDonation(ctx, rt, donation)
	}
	return r.splitDonation(ctx, rt, donation)
}

func (r *Reconciler) moveDonation(ctx context.Context, rt *resolvedTransfer, donation Donation) error {
	patch := DonationPatch{
		Amount:       ptr(rt.Amount),
		PaymentState: ptr(PaymentStateFromCode(rt.toNote.PaymentState)),
		UpdatedAt:    ptr(rt.Timestamp),
		Owner:        ptr(rt.toNote.Owner),
		OwnerID:      ptr(rt.toOwner.TypeID),
		OwnerType:    ptr(rt.toOwner.Type),
		NoteID:       ptr(rt.To),
		Status:       ptr(rt.status()),
		// a proposal left by an earlier holder is cleared
		ProposedProject: ptr(rt.toNote.ProposedProject),
	}
	if rt.proposedProject != nil {
		patch.ProposedProjectID = ptr(rt.proposedProject.TypeID)
		patch.ProposedProjectType = ptr(rt.proposedProject.Type)
	}
	if rt.delegate != nil {
		patch.Delegate = ptr(rt.delegate.ID)
		patch.DelegateID = ptr(rt.delegate.TypeID)
	}

	if _, err := r.donations.PatchDonation(ctx, donation.ID, patch); err != nil {
		return fmt.Errorf("%w: patch donation %s: %w", ErrDonationWrite, donation.ID, err)
	}

	return r.recordHistory(ctx, rt, donation.ID)
}

func (r *Reconciler) splitDonation(ctx context.Context, rt *resolvedTransfer, donation Donation) error {
	if donation.Amount.Cmp(rt.Amount) < 0 {
		r.log.WarnContext(ctx, "Transfer exceeds recorded donation",
			slog.String("donationID", donation.ID),
			slog.String("recorded", donation.Amount.String()),
			slog.String("moved", rt.Amount.String()),
		)
	}
	remaining := donation.Amount.Sub(rt.Amount)
	if _, err := r.donations.PatchDonation(ctx, donation.ID, DonationPatch{Amount: &remaining}); err != nil {
		return fmt.Errorf("%w: reduce donation %s: %w", ErrDonationWrite, donation.ID, err)
	}

	sibling := NewDonation{
		TxHash:          rt.TxHash,
		NoteID:          rt.To,
		Amount:          rt.Amount,
		Owner:           rt.toOwner.TypeID,
		OwnerID:         rt.toOwner.TypeID,
		OwnerType:       rt.toOwner.Type,
		Status:          rt.status(),
		PaymentState:    PaymentStateFromCode(rt.toNote.PaymentState),
		CreatedAt:       rt.Timestamp,
		DonorAddress:    donation.DonorAddress,
		ProposedProject: rt.toNote.ProposedProject,
	}

	if _, err := r.donations.CreateDonation(ctx, sibling); err != nil {
		return fmt.Errorf("%w: split donation %s into note %s: %w", ErrDonationWrite, donation.ID, rt.To, err)
	}

	r.purge(ctx, rt.To)
	return nil
}

// recordHistory appends a history entry when the destination note is
// being paid or has been paid
func (r *Reconciler) recordHistory(ctx context.Context, rt *resolvedTransfer, donationID string) error {
	status, ok := historyStatusFor(PaymentStateFromCode(rt.toNote.PaymentState))
	if !ok {
		return nil
	}

	_, err := r.donations.CreateHistory(ctx, donationID, HistoryEntry{
		DonationID: donationID,
		Status:     status,
		CreatedAt:  rt.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("%w: donation %s: %w", ErrHistoryWrite, donationID, err)
	}
	return nil
}

// status derives the donation status at the destination note
func (rt *resolvedTransfer) status() DonationStatus {
	switch {
	case rt.proposedProject != nil:
		return StatusToApprove
	case rt.toOwner.Type == OwnerUser || rt.delegate != nil:
		return StatusWaiting
	default:
		return StatusCommitted
	}
}
