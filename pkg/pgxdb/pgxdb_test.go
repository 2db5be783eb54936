package pgxdb_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/pledger/pkg/pgxdb"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	t.Run("it detects a wrapped unique violation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})

		// Act & Assert
		assert.True(t, pgxdb.IsUniqueViolation(err))
	})

	t.Run("it ignores other errors", func(t *testing.T) {
		t.Parallel()

		// Act & Assert
		assert.False(t, pgxdb.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
		assert.False(t, pgxdb.IsUniqueViolation(errors.New("boom")))
		assert.False(t, pgxdb.IsUniqueViolation(nil))
	})
}

func TestNewConnection(t *testing.T) {
	t.Parallel()

	t.Run("it rejects a malformed connection string", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := pgxdb.NewConnection(t.Context(), "postgres://%zz")

		// Assert
		assert.ErrorIs(t, err, pgxdb.ErrInvalidConnectionString)
	})
}
