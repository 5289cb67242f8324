package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type retryableErr struct{}

func (retryableErr) Error() string     { return "connection reset before send" }
func (retryableErr) SafeToRetry() bool { return true }

func TestWrapClassifiesErrors(t *testing.T) {
	plain := errors.New("syntax error")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: ErrDeadlineExceeded},
		{name: "retryable transport", err: retryableErr{}, want: ErrStoreUnavailable},
		{name: "other", err: plain, want: plain},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrap("op", tc.err)
			assert.ErrorIs(t, got, tc.want)
			assert.Contains(t, got.Error(), "op: ")
		})
	}

	assert.NoError(t, wrap("op", nil))
	assert.NotErrorIs(t, wrap("op", context.Canceled), ErrStoreUnavailable)
}

func TestPgCode(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_key"})
	assert.Equal(t, pgUniqueViolation, pgCode(err))
	assert.Equal(t, "users_email_key", pgConstraint(err))
	assert.Empty(t, pgCode(errors.New("boom")))
	assert.Empty(t, pgConstraint(errors.New("boom")))
}
