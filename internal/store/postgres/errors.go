package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"coinstock/backend/internal/store"
)

// wrapErr keeps the SQLSTATE as the store code and maps the classes the core
// distinguishes onto the store sentinels.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &store.Error{Op: op, Err: store.ErrNotFound}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	kind := kindFor(pgErr.Code)
	if kind == nil {
		return &store.Error{Op: op, Code: pgErr.Code, Err: pgErr}
	}
	return &store.Error{Op: op, Code: pgErr.Code, Err: fmt.Errorf("%w: %s", kind, pgErr.Message)}
}

func kindFor(code string) error {
	switch code {
	case "23505":
		return store.ErrConflict
	case "23514", "23503", "22P02", "22023", "23502":
		return store.ErrInvalidInput
	case "42883", "42P01":
		return store.ErrNotReady
	case "P0002":
		return store.ErrNotFound
	default:
		return nil
	}
}
