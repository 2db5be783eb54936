package pgxstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/pledger/web/donations"
	"github.com/screwyprof/pledger/web/store/pgxstore"
)

func TestDonationsQueryBuilder(t *testing.T) {
	t.Parallel()

	t.Run("it lists everything most recent first on the first page", func(t *testing.T) {
		t.Parallel()

		// Arrange
		criteria := mustCriteria(t, "", "", 1, 10)

		// Act
		sql, args := pgxstore.NewDonationsQuery().ForCriteria(criteria).Build()

		// Assert
		assert.NotContains(t, sql, "WHERE")
		assert.Contains(t, sql, "ORDER BY created_at DESC, id DESC LIMIT $1")
		assert.NotContains(t, sql, "OFFSET")
		assert.Equal(t, []any{uint64(11)}, args, "One extra row detects further pages")
	})

	t.Run("it combines owner and status filters", func(t *testing.T) {
		t.Parallel()

		// Arrange
		criteria := mustCriteria(t, "7", "committed", 3, 20)

		// Act
		sql, args := pgxstore.NewDonationsQuery().ForCriteria(criteria).Build()

		// Assert
		assert.Contains(t, sql, "WHERE owner = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4")
		assert.Equal(t, []any{"7", "committed", uint64(21), uint64(40)}, args)
	})

	t.Run("it filters by status alone", func(t *testing.T) {
		t.Parallel()

		// Arrange
		criteria := mustCriteria(t, "", "waiting", 1, 10)

		// Act
		sql, args := pgxstore.NewDonationsQuery().ForCriteria(criteria).Build()

		// Assert
		assert.Contains(t, sql, "WHERE status = $1 ORDER BY")
		assert.Equal(t, []any{"waiting", uint64(11)}, args)
	})
}

func mustCriteria(t *testing.T, owner, status string, page, perPage uint64) donations.Criteria {
	t.Helper()

	criteria, err := donations.NewCriteria(owner, status, page, perPage)
	require.NoError(t, err)

	return criteria
}
