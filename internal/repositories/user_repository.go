package repositories

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAvatar(ctx context.Context, id, url string, at time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string, at time.Time) (models.User, error)
}
