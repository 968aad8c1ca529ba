package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinstock/backend/internal/store"
)

func TestWrapErrMapsSQLState(t *testing.T) {
	tests := []struct {
		code string
		kind error
	}{
		{"23505", store.ErrConflict},
		{"23514", store.ErrInvalidInput},
		{"23503", store.ErrInvalidInput},
		{"22P02", store.ErrInvalidInput},
		{"42883", store.ErrNotReady},
		{"42P01", store.ErrNotReady},
		{"P0002", store.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := wrapErr("record purchase", &pgconn.PgError{Code: tc.code, Message: "boom"})
			require.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.code, store.CodeOf(err))
			assert.Contains(t, err.Error(), "record purchase")
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestWrapErrKeepsUnknownCodes(t *testing.T) {
	err := wrapErr("list orders", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	assert.Equal(t, "40001", store.CodeOf(err))
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.False(t, errors.Is(err, store.ErrNotReady))
}

func TestWrapErrNoRowsIsNotFound(t *testing.T) {
	err := wrapErr("update platform", sql.ErrNoRows)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, store.CodeOf(err))
	assert.Nil(t, wrapErr("noop", nil))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `bank`, escapeLike(" bank "))
	assert.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	fn, err := migrationsFS.ReadFile(migrationsDir + "/" + entries[1].Name())
	require.NoError(t, err)
	content := string(fn)
	for _, want := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE OR REPLACE FUNCTION record_platform_purchase",
		"FOR UPDATE",
		"USING ERRCODE = 'P0002'",
	} {
		assert.Contains(t, content, want)
	}

	schema, err := migrationsFS.ReadFile(migrationsDir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(schema), "CHECK (new_inventory = previous_inventory + quantity)")
	assert.Contains(t, string(schema), "CHECK (inventory >= 0)")
}
