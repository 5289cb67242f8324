package repositories

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

// PostgresSessionStore keeps each user's refresh-session slot on the users row.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// SaveSession overwrites the user's slot.
func (s *PostgresSessionStore) SaveSession(ctx context.Context, userID string, session models.RefreshSession) error {
	return s.update(ctx, "save session", auth.ErrSubjectNotFound, `
        UPDATE users
        SET refresh_token_id = $2, refresh_expires_at = $3
        WHERE id = $1
    `, userID, session.TokenID, session.ExpiresAt.UTC())
}

// RotateSession swaps the slot in a single conditional update, so of two concurrent
// rotations presenting the same token only one can match.
func (s *PostgresSessionStore) RotateSession(ctx context.Context, userID, presentedID string, next models.RefreshSession, now time.Time) error {
	return s.update(ctx, "rotate session", auth.ErrInvalidSession, `
        UPDATE users
        SET refresh_token_id = $3, refresh_expires_at = $4
        WHERE id = $1
          AND refresh_token_id = $2
          AND refresh_expires_at > $5
    `, userID, presentedID, next.TokenID, next.ExpiresAt.UTC(), now.UTC())
}

// ClearSession empties the user's slot.
func (s *PostgresSessionStore) ClearSession(ctx context.Context, userID string) error {
	return s.update(ctx, "clear session", auth.ErrSubjectNotFound, `
        UPDATE users
        SET refresh_token_id = NULL, refresh_expires_at = NULL
        WHERE id = $1
    `, userID)
}

func (s *PostgresSessionStore) update(ctx context.Context, op string, noRows error, query string, args ...any) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		if pgCode(err) == pgInvalidTextRepr {
			return noRows
		}
		return wrap(op, err)
	}

	if tag.RowsAffected() == 0 {
		return noRows
	}

	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
