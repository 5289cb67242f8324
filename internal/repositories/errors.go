package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrStoreUnavailable indicates the database could not be reached or timed out.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDeadlineExceeded indicates the caller's deadline expired during a store call.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// pgCode returns the SQLSTATE of a PostgreSQL error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// pgConstraint returns the constraint name of a PostgreSQL error, or "".
func pgConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// wrap annotates err with op, translating transport failures and expired deadlines
// into ErrStoreUnavailable and ErrDeadlineExceeded.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case pgconn.Timeout(err):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
