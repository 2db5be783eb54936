package pgxstore

import (
	"fmt"
	"strings"

	"github.com/screwyprof/pledger/reconciler"
	"github.com/screwyprof/pledger/reconciler/store/dbrow"
)

// SQL queries
const (
	baseDonationsQuery = "SELECT " + dbrow.DonationColumns + " FROM donations"
)

// DonationsQueryBuilder builds lookups of donations by note and transaction
type DonationsQueryBuilder struct {
	sql        string
	args       []any
	conditions int
}

// NewDonationsQuery creates a new donation query builder
func NewDonationsQuery() *DonationsQueryBuilder {
	return &DonationsQueryBuilder{
		sql: baseDonationsQuery,
	}
}

// ForQuery applies the reconciler query in one fluent call
func (q *DonationsQueryBuilder) ForQuery(query reconciler.DonationQuery) *DonationsQueryBuilder {
	return q.
		filterByNote(query.NoteID).
		filterByTx(query.TxHash).
		orderByCreatedAt()
}

func (q *DonationsQueryBuilder) filterByNote(id reconciler.NoteID) *DonationsQueryBuilder {
	if id != "" {
		q.addWhereCondition("note_id = $%d", id.String())
	}
	return q
}

func (q *DonationsQueryBuilder) filterByTx(hash string) *DonationsQueryBuilder {
	if hash != "" {
		q.addWhereCondition("tx_hash = $%d", hash)
	}
	return q
}

// orderByCreatedAt keeps the first match stable across calls
func (q *DonationsQueryBuilder) orderByCreatedAt() *DonationsQueryBuilder {
	q.sql += " ORDER BY created_at, id"
	return q
}

// Build returns the final SQL query and arguments
func (q *DonationsQueryBuilder) Build() (string, []any) {
	return q.sql, q.args
}

func (q *DonationsQueryBuilder) addWhereCondition(sqlClause string, value any) {
	q.args = append(q.args, value)
	clause := fmt.Sprintf(sqlClause, len(q.args))

	if q.conditions > 0 {
		q.sql += " AND " + clause
	} else {
		q.sql += " WHERE " + clause
	}
	q.conditions++
}

// DonationPatchBuilder turns a partial update into an UPDATE ... RETURNING
type DonationPatchBuilder struct {
	sets []string
	args []any
}

// NewDonationPatch collects the set fields of p
func NewDonationPatch(p reconciler.DonationPatch) *DonationPatchBuilder {
	b := &DonationPatchBuilder{}

	if p.NoteID != nil {
		b.set("note_id = $%d", p.NoteID.String())
	}
	if p.Amount != nil {
		b.set("amount = $%d::numeric", p.Amount.String())
	}
	setString(b, "owner", p.Owner)
	setString(b, "owner_id", p.OwnerID)
	setString(b, "owner_type", p.OwnerType)
	setString(b, "status", p.Status)
	setString(b, "payment_state", p.PaymentState)
	setString(b, "proposed_project", p.ProposedProject)
	setString(b, "proposed_project_id", p.ProposedProjectID)
	setString(b, "proposed_project_type", p.ProposedProjectType)
	setString(b, "delegate", p.Delegate)
	setString(b, "delegate_id", p.DelegateID)
	setString(b, "donor_address", p.DonorAddress)
	if p.CreatedAt != nil {
		b.set("created_at = $%d", *p.CreatedAt)
	}
	if p.UpdatedAt != nil {
		b.set("updated_at = $%d", *p.UpdatedAt)
	}

	return b
}

// Build returns the statement for the donation id. An empty patch
// degrades to a plain select so callers still get the current state.
func (b *DonationPatchBuilder) Build(id string) (string, []any) {
	args := append(append([]any(nil), b.args...), id)
	idPlaceholder := len(args)

	if len(b.sets) == 0 {
		return fmt.Sprintf("%s WHERE id = $%d", baseDonationsQuery, idPlaceholder), args
	}

	return fmt.Sprintf("UPDATE donations SET %s WHERE id = $%d RETURNING %s",
		strings.Join(b.sets, ", "), idPlaceholder, dbrow.DonationColumns), args
}

func (b *DonationPatchBuilder) set(sqlClause string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf(sqlClause, len(b.args)))
}

func setString[T ~string](b *DonationPatchBuilder, column string, v *T) {
	if v != nil {
		b.set(column+" = $%d", string(*v))
	}
}
