package reconciler

import (
	"fmt"
	"math/big"
	"time"
)

// GenesisNoteID is the "from" value of a Transfer event that creates a note
const GenesisNoteID NoteID = "0"

// TransferEventName is the only event name the reconciler accepts
const TransferEventName = "Transfer"

// NoteID identifies a note on the ledger
type NoteID string

func (id NoteID) String() string { return string(id) }

// IsGenesis reports whether id is the sentinel source of a note creation
func (id NoteID) IsGenesis() bool { return id == GenesisNoteID }

// Amount is a non-negative quantity in ledger-native units
// ------------------------------------------------------
type Amount struct {
	v big.Int
}

// ParseAmount parses a base-10 ledger amount
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.v.SetString(s, 10); !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if a.v.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, s)
	}
	return a, nil
}

// MustParseAmount is ParseAmount for constants and tests
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string { return a.v.String() }

// Equal reports whether a and b hold the same quantity
func (a Amount) Equal(b Amount) bool { return a.v.Cmp(&b.v) == 0 }

// Cmp compares a and b like big.Int.Cmp
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Sub returns a - b. The result may be negative if the ledger and the
// record store disagree; callers persist it as-is so the drift stays visible.
func (a Amount) Sub(b Amount) Amount {
	var r Amount
	r.v.Sub(&a.v, &b.v)
	return r
}

// DonationStatus is the lifecycle status of a donation record
type DonationStatus string

const (
	StatusWaiting   DonationStatus = "waiting"
	StatusToApprove DonationStatus = "to_approve"
	StatusCommitted DonationStatus = "committed"
)

// OwnerType is the category of a note owner
type OwnerType string

const (
	OwnerUser     OwnerType = "user"
	OwnerProject  OwnerType = "project"
	OwnerDelegate OwnerType = "delegate"
	OwnerCampaign OwnerType = "campaign"
)

// HistoryStatus labels a donation history entry
type HistoryStatus string

const (
	HistoryPaymentInitiated HistoryStatus = "Payment Initiated"
	HistoryPaymentCompleted HistoryStatus = "Payment Completed"
)

// Note is a read-only snapshot of a ledger note
type Note struct {
	ID              NoteID
	Owner           string
	PaymentState    string // raw ledger code, see PaymentStateFromCode
	NDelegates      uint64
	ProposedProject string
}

// HasDelegates reports whether the note has a delegation chain
func (n Note) HasDelegates() bool { return n.NDelegates > 0 }

// HasProposedProject reports whether a reassignment is awaiting approval
func (n Note) HasProposedProject() bool {
	return n.ProposedProject != "" && n.ProposedProject != "0"
}

// Delegate is an entry of a note's delegation chain
type Delegate struct {
	IDDelegate string
}

// Block carries the ledger timestamp of a mined block in unix seconds
type Block struct {
	Number    uint64
	Timestamp int64
}

// Owner is the entity behind a ledger owner reference
type Owner struct {
	ID      string
	Type    OwnerType
	TypeID  string
	Address string
}

// Donation is the record-store projection of a note
type Donation struct {
	ID                  string
	TxHash              string
	NoteID              NoteID
	Amount              Amount
	Owner               string
	OwnerID             string
	OwnerType           OwnerType
	Status              DonationStatus
	PaymentState        PaymentState
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProposedProject     string
	ProposedProjectID   string
	ProposedProjectType OwnerType
	Delegate            string
	DelegateID          string
	DonorAddress        string
}

// DonationQuery selects donations by equality on the non-empty fields
type DonationQuery struct {
	NoteID NoteID
	TxHash string
}

// NewDonation is the payload of a donation create
type NewDonation struct {
	// Genesis marks the record written for a note creation. At most one
	// genesis record exists per note and transaction.
	Genesis         bool
	TxHash          string
	NoteID          NoteID
	Amount          Amount
	Owner           string
	OwnerID         string
	OwnerType       OwnerType
	Status          DonationStatus
	PaymentState    PaymentState
	CreatedAt       time.Time
	ProposedProject string
	DonorAddress    string
}

// DonationPatch is a partial update; nil fields are left untouched
type DonationPatch struct {
	NoteID              *NoteID
	Amount              *Amount
	Owner               *string
	OwnerID             *string
	OwnerType           *OwnerType
	Status              *DonationStatus
	PaymentState        *PaymentState
	CreatedAt           *time.Time
	UpdatedAt           *time.Time
	ProposedProject     *string
	ProposedProjectID   *string
	ProposedProjectType *OwnerType
	Delegate            *string
	DelegateID          *string
	DonorAddress        *string
}

// HistoryEntry is an append-only record attached to a donation
type HistoryEntry struct {
	ID         string
	DonationID string
	Status     HistoryStatus
	CreatedAt  time.Time
}

// ReturnValues are the decoded arguments of a Transfer event
type ReturnValues struct {
	From   NoteID
	To     NoteID
	Amount string
}

// TransferEvent is a ledger event as delivered by the event source
type TransferEvent struct {
	ID              int64
	Event           string
	ReturnValues    ReturnValues
	BlockNumber     uint64
	TransactionHash string
}

// IsGenesis reports whether the event creates a note
func (e TransferEvent) IsGenesis() bool { return e.ReturnValues.From.IsGenesis() }

func validateEvent(e TransferEvent) error {
	if e.Event != TransferEventName {
		return fmt.Errorf("%w: got %q", ErrNotTransferEvent, e.Event)
	}
	if e.ReturnValues.To == "" {
		return fmt.Errorf("%w: missing destination note", ErrInvalidEvent)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
