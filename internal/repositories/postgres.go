package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
)

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrConflict
		}
		return wrap("insert user", err)
	}

	return nil
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByLogin fetches a user by username or email address.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	return r.findOne(ctx, "select user by login", `SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 LIMIT 1`, login)
}

// UpdateAccount changes the user's display name and email address.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error) {
	return r.findOne(ctx, "update account", `
        UPDATE users SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+userColumns, id, fullName, email, at)
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, passwordHash, at)
	if err != nil {
		return wrap("update password", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateAvatar records a new avatar location.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, url string, at time.Time) (models.User, error) {
	return r.findOne(ctx, "update avatar", `
        UPDATE users SET avatar_url = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+userColumns, id, url, at)
}

// UpdateCoverImage records a new cover image location.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, url string, at time.Time) (models.User, error) {
	return r.findOne(ctx, "update cover image", `
        UPDATE users SET cover_image_url = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+userColumns, id, url, at)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, query string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, wrap("acquire connection", err)
	}
	defer conn.Release()

	var user models.User
	err = conn.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.AvatarURL,
		&user.CoverImageURL, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.User{}, ErrNotFound
		case pgCode(err) == pgUniqueViolation:
			return models.User{}, ErrConflict
		case pgCode(err) == pgInvalidTextRepr:
			return models.User{}, ErrNotFound
		}
		return models.User{}, wrap(op, err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
