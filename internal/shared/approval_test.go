package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateCommand(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_approval_journal_cmd"}
	require.True(t, isDuplicateCommand(dup))
	require.True(t, isDuplicateCommand(fmt.Errorf("exec: %w", dup)))

	other := &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_pkey"}
	require.False(t, isDuplicateCommand(other))
	require.False(t, isDuplicateCommand(errors.New("connection reset")))
	require.False(t, isDuplicateCommand(nil))
}
