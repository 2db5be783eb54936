package pgxstore

import (
	"fmt"

	"github.com/screwyprof/pledger/reconciler/store/dbrow"
	"github.com/screwyprof/pledger/web/donations"
)

// SQL queries
const (
	baseDonationsQuery = "SELECT " + dbrow.DonationColumns + " FROM donations"
)

// DonationsQueryBuilder provides a domain-specific language for building donation listing queries
type DonationsQueryBuilder struct {
	sql      string
	args     []any
	hasWhere bool
}

// NewDonationsQuery creates a new donation query builder
func NewDonationsQuery() *DonationsQueryBuilder {
	return &DonationsQueryBuilder{
		sql: baseDonationsQuery,
	}
}

// ForCriteria applies the listing criteria to the query in one fluent call
func (q *DonationsQueryBuilder) ForCriteria(criteria donations.Criteria) *DonationsQueryBuilder {
	return q.
		filterByOwner(criteria.Owner).
		filterByStatus(string(criteria.Status)).
		orderByCreatedAtDesc().
		paginateWithDetection(criteria)
}

// filterByOwner adds owner filtering if an owner is specified
func (q *DonationsQueryBuilder) filterByOwner(owner string) *DonationsQueryBuilder {
	if owner != "" {
		q.addWhereCondition("owner = $%d", owner)
	}
	return q
}

// filterByStatus adds status filtering if a status is specified
func (q *DonationsQueryBuilder) filterByStatus(status string) *DonationsQueryBuilder {
	if status != "" {
		q.addWhereCondition("status = $%d", status)
	}
	return q
}

// orderByCreatedAtDesc orders most recent first; id breaks ties so pages are stable
func (q *DonationsQueryBuilder) orderByCreatedAtDesc() *DonationsQueryBuilder {
	q.sql += " ORDER BY created_at DESC, id DESC"
	return q
}

// paginateWithDetection adds pagination with "has more" detection using LIMIT n+1
func (q *DonationsQueryBuilder) paginateWithDetection(criteria donations.Criteria) *DonationsQueryBuilder {
	limit := criteria.ItemsPerPage() + 1
	offset := criteria.ItemsToSkip()

	q.addParameter("LIMIT $%d", limit)

	if offset > 0 {
		q.addParameter("OFFSET $%d", offset)
	}

	return q
}

// Build returns the final SQL query and arguments
func (q *DonationsQueryBuilder) Build() (string, []any) {
	return q.sql, q.args
}

// addWhereCondition adds a WHERE condition, handling AND logic automatically
func (q *DonationsQueryBuilder) addWhereCondition(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()

	if q.hasWhere {
		q.sql += " AND " + fmt.Sprintf(sqlClause, placeholder)
	} else {
		q.sql += " WHERE " + fmt.Sprintf(sqlClause, placeholder)
		q.hasWhere = true
	}

	q.args = append(q.args, value)
}

// addParameter adds a SQL clause with a parameter
func (q *DonationsQueryBuilder) addParameter(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()
	q.sql += " " + fmt.Sprintf(sqlClause, placeholder)
	q.args = append(q.args, value)
}

// nextPlaceholder returns the next PostgreSQL placeholder ($1, $2, etc.)
func (q *DonationsQueryBuilder) nextPlaceholder() int {
	return len(q.args) + 1
}
