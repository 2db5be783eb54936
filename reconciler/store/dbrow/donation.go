package dbrow

import (
	"fmt"
	"time"

	"github.com/screwyprof/pledger/reconciler"
)

// Donation represents a donation record as stored in the database.
// Amount is selected as text to keep NUMERIC precision.
type Donation struct {
	ID                  string     `db:"id"`
	TxHash              string     `db:"tx_hash"`
	NoteID              string     `db:"note_id"`
	Amount              string     `db:"amount"`
	Owner               string     `db:"owner"`
	OwnerID             string     `db:"owner_id"`
	OwnerType           string     `db:"owner_type"`
	Status              string     `db:"status"`
	PaymentState        string     `db:"payment_state"`
	ProposedProject     string     `db:"proposed_project"`
	ProposedProjectID   string     `db:"proposed_project_id"`
	ProposedProjectType string     `db:"proposed_project_type"`
	Delegate            string     `db:"delegate"`
	DelegateID          string     `db:"delegate_id"`
	DonorAddress        string     `db:"donor_address"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at"`
}

// DonationColumns is the select list matching Donation
const DonationColumns = `id::text AS id, tx_hash, note_id, amount::text AS amount, owner, owner_id, owner_type,
	status, payment_state, proposed_project, proposed_project_id, proposed_project_type,
	delegate, delegate_id, donor_address, created_at, updated_at`

// ToDomain converts the row into a reconciler donation
func (d Donation) ToDomain() (reconciler.Donation, error) {
	amount, err := reconciler.ParseAmount(d.Amount)
	if err != nil {
		return reconciler.Donation{}, fmt.Errorf("donation %s: %w", d.ID, err)
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = d.UpdatedAt.UTC()
	}

	return reconciler.Donation{
		ID:                  d.ID,
		TxHash:              d.TxHash,
		NoteID:              reconciler.NoteID(d.NoteID),
		Amount:              amount,
		Owner:               d.Owner,
		OwnerID:             d.OwnerID,
		OwnerType:           reconciler.OwnerType(d.OwnerType),
		Status:              reconciler.DonationStatus(d.Status),
		PaymentState:        reconciler.PaymentState(d.PaymentState),
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           updatedAt,
		ProposedProject:     d.ProposedProject,
		ProposedProjectID:   d.ProposedProjectID,
		ProposedProjectType: reconciler.OwnerType(d.ProposedProjectType),
		Delegate:            d.Delegate,
		DelegateID:          d.DelegateID,
		DonorAddress:        d.DonorAddress,
	}, nil
}

// History represents a donation history entry as stored in the database
type History struct {
	ID         string    `db:"id"`
	DonationID string    `db:"donation_id"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// ToDomain converts the row into a reconciler history entry
func (h History) ToDomain() reconciler.HistoryEntry {
	return reconciler.HistoryEntry{
		ID:         h.ID,
		DonationID: h.DonationID,
		Status:     reconciler.HistoryStatus(h.Status),
		CreatedAt:  h.CreatedAt.UTC(),
	}
}

// NoteManager represents an owner record as stored in the database
type NoteManager struct {
	ID      string `db:"id"`
	Type    string `db:"type"`
	TypeID  string `db:"type_id"`
	Address string `db:"address"`
}

// ToDomain converts the row into a reconciler owner
func (m NoteManager) ToDomain() reconciler.Owner {
	return reconciler.Owner{
		ID:      m.ID,
		Type:    reconciler.OwnerType(m.Type),
		TypeID:  m.TypeID,
		Address: m.Address,
	}
}
