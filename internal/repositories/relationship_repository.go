package repositories

import (
	"context"
	"fmt"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/social"
)

// targetTables maps each relationship target type to the table its ids live in.
var targetTables = map[models.TargetType]string{
	models.TargetChannel: "users",
	models.TargetVideo:   "videos",
	models.TargetComment: "comments",
	models.TargetTweet:   "tweets",
}

// PostgresRelationshipStore persists subscriptions and likes in the relationships table.
type PostgresRelationshipStore struct {
	pool db.Pool
}

// NewPostgresRelationshipStore constructs a relationship store backed by PostgreSQL.
func NewPostgresRelationshipStore(pool db.Pool) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{pool: pool}
}

// Exists reports whether the edge is present.
func (s *PostgresRelationshipStore) Exists(ctx context.Context, key models.RelationshipKey) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, wrap("acquire connection", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM relationships
            WHERE actor_id = $1 AND target_id = $2 AND target_type = $3 AND kind = $4
        )
    `, key.ActorID, key.TargetID, string(key.TargetType), string(key.Kind)).Scan(&exists)
	if err != nil {
		return false, wrap("select relationship", err)
	}

	return exists, nil
}

// Insert adds the edge, relying on the unique index to reject a concurrent duplicate.
func (s *PostgresRelationshipStore) Insert(ctx context.Context, rel models.Relationship) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO relationships (id, actor_id, target_id, target_type, kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, rel.ID, rel.ActorID, rel.TargetID, string(rel.TargetType), string(rel.Kind), rel.CreatedAt.UTC())
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return social.ErrDuplicateRelationship
		case pgForeignKeyViolation:
			return social.ErrUnknownActor
		}
		return wrap("insert relationship", err)
	}

	return nil
}

// Delete removes the edge. Zero affected rows means a concurrent toggle removed it first.
func (s *PostgresRelationshipStore) Delete(ctx context.Context, key models.RelationshipKey) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        DELETE FROM relationships
        WHERE actor_id = $1 AND target_id = $2 AND target_type = $3 AND kind = $4
    `, key.ActorID, key.TargetID, string(key.TargetType), string(key.Kind))
	if err != nil {
		return wrap("delete relationship", err)
	}

	return nil
}

// Count returns the number of edges of kind pointing at the target.
func (s *PostgresRelationshipStore) Count(ctx context.Context, targetID string, kind models.RelationKind, targetType models.TargetType) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, wrap("acquire connection", err)
	}
	defer conn.Release()

	var count int64
	err = conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM relationships
        WHERE target_id = $1 AND target_type = $2 AND kind = $3
    `, targetID, string(targetType), string(kind)).Scan(&count)
	if err != nil {
		return 0, wrap("count relationships", err)
	}

	return count, nil
}

// TargetExists reports whether a row with targetID exists in the target type's table.
func (s *PostgresRelationshipStore) TargetExists(ctx context.Context, targetType models.TargetType, targetID string) (bool, error) {
	table, ok := targetTables[targetType]
	if !ok {
		return false, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, wrap("acquire connection", err)
	}
	defer conn.Release()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := conn.QueryRow(ctx, query, targetID).Scan(&exists); err != nil {
		if pgCode(err) == pgInvalidTextRepr {
			return false, nil
		}
		return false, wrap("resolve "+string(targetType), err)
	}

	return exists, nil
}

var (
	_ social.RelationshipStore = (*PostgresRelationshipStore)(nil)
	_ social.TargetResolver    = (*PostgresRelationshipStore)(nil)
)
