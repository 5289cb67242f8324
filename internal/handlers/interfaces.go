package handlers

import (
	"context"
	"time"

	"github.com/videotube/backend/internal/models"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAvatar(ctx context.Context, id, url string, at time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string, at time.Time) (models.User, error)
}

// SessionManager issues, rotates and revokes authentication tokens for users.
type SessionManager interface {
	Login(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, userID string) error
	Authenticate(accessToken string) (string, error)
}

// RelationshipToggler flips subscriptions and likes.
type RelationshipToggler interface {
	Toggle(ctx context.Context, actorID, targetID string, kind models.RelationKind, targetType models.TargetType) (models.ToggleResult, error)
}

// ViewBuilder serves the read-side projections.
type ViewBuilder interface {
	ProjectChannelProfileByUsername(ctx context.Context, viewerID, username string) (models.ChannelProfile, error)
	ProjectLikeState(ctx context.Context, viewerID, targetID string, targetType models.TargetType) (models.LikeState, error)
	ProjectWatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchedVideo, error)
	RecordView(ctx context.Context, userID, videoID string) error
	Subscribers(ctx context.Context, channelID string, limit int) ([]models.Subscription, error)
	SubscribedChannels(ctx context.Context, subscriberID string, limit int) ([]models.Subscription, error)
	LikedVideos(ctx context.Context, userID string, limit int) ([]models.Video, error)
}

// Uploader publishes a local file and returns the URL it can be fetched from.
type Uploader interface {
	Store(ctx context.Context, localPath string) (string, error)
}

// Pinger checks connectivity to the backing database.
type Pinger interface {
	Ping(ctx context.Context) error
}
