package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ChannelLookup selects a channel by id or, when ID is empty, by username.
type ChannelLookup struct {
	ID       string
	Username string
}

// ViewStore computes read-time projections over relationships. Every method is served
// by a single query against the store.
type ViewStore interface {
	Count(ctx context.Context, targetID string, kind models.RelationKind, targetType models.TargetType) (int64, error)
	Exists(ctx context.Context, key models.RelationshipKey) (bool, error)
	// ChannelProfile returns ErrInvalidTarget when the channel does not exist.
	ChannelProfile(ctx context.Context, viewerID string, lookup ChannelLookup) (models.ChannelProfile, error)
	// LikeState returns ErrInvalidTarget when the target does not exist.
	LikeState(ctx context.Context, viewerID, targetID string, targetType models.TargetType) (models.LikeState, error)
	WatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchedVideo, error)
	// RecordView returns ErrInvalidTarget for an unknown video and ErrUnknownActor for an unknown user.
	RecordView(ctx context.Context, userID, videoID string, at time.Time) error
	Subscribers(ctx context.Context, channelID string, limit int) ([]models.Subscription, error)
	SubscribedChannels(ctx context.Context, subscriberID string, limit int) ([]models.Subscription, error)
	LikedVideos(ctx context.Context, userID string, limit int) ([]models.Video, error)
}

// Views builds the derived views shown alongside channels, videos and users.
type Views struct {
	store   ViewStore
	NowFunc func() time.Time
}

// NewViews constructs a view builder over store.
func NewViews(store ViewStore) *Views {
	if store == nil {
		panic("social: view store must not be nil")
	}
	return &Views{store: store}
}

// CountFor returns the number of active relations of kind pointing at the target.
func (v *Views) CountFor(ctx context.Context, targetID string, kind models.RelationKind, targetType models.TargetType) (int64, error) {
	if err := checkTarget(targetID, kind, targetType); err != nil {
		return 0, err
	}
	return v.store.Count(ctx, targetID, kind, targetType)
}

// ViewerFlag reports whether actor holds an active relation of kind to the target.
// Anonymous viewers never do.
func (v *Views) ViewerFlag(ctx context.Context, actorID, targetID string, kind models.RelationKind, targetType models.TargetType) (bool, error) {
	if err := checkTarget(targetID, kind, targetType); err != nil {
		return false, err
	}
	if !isUUID(actorID) {
		return false, nil
	}
	return v.store.Exists(ctx, models.RelationshipKey{
		ActorID:    actorID,
		TargetID:   targetID,
		TargetType: targetType,
		Kind:       kind,
	})
}

// ProjectChannelProfile returns the channel's public fields with its subscription
// counts and whether viewer is subscribed.
func (v *Views) ProjectChannelProfile(ctx context.Context, viewerID, channelID string) (models.ChannelProfile, error) {
	if !isUUID(channelID) {
		return models.ChannelProfile{}, fmt.Errorf("%w: malformed channel id %q", ErrInvalidTarget, channelID)
	}
	return v.channelProfile(ctx, viewerID, ChannelLookup{ID: channelID})
}

// ProjectChannelProfileByUsername is ProjectChannelProfile keyed by the channel's username.
func (v *Views) ProjectChannelProfileByUsername(ctx context.Context, viewerID, username string) (models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, fmt.Errorf("%w: username is missing", ErrInvalidTarget)
	}
	return v.channelProfile(ctx, viewerID, ChannelLookup{Username: username})
}

func (v *Views) channelProfile(ctx context.Context, viewerID string, lookup ChannelLookup) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "social.channel_profile",
		slog.String("channel_id", lookup.ID),
		slog.String("username", lookup.Username),
	)
	defer span.End()

	if !isUUID(viewerID) {
		viewerID = ""
	}

	profile, err := v.store.ChannelProfile(ctx, viewerID, lookup)
	if err != nil {
		span.RecordError(err)
		return models.ChannelProfile{}, err
	}
	return profile, nil
}

// ProjectLikeState returns the like count of a target and whether viewer liked it.
func (v *Views) ProjectLikeState(ctx context.Context, viewerID, targetID string, targetType models.TargetType) (models.LikeState, error) {
	if err := checkTarget(targetID, models.KindLike, targetType); err != nil {
		return models.LikeState{}, err
	}
	if !isUUID(viewerID) {
		viewerID = ""
	}
	return v.store.LikeState(ctx, viewerID, targetID, targetType)
}

// ProjectWatchHistory returns the videos userID watched, most recent first.
func (v *Views) ProjectWatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchedVideo, error) {
	if !isUUID(userID) {
		return nil, ErrUnauthenticated
	}

	ctx, span := logging.StartSpan(ctx, "social.watch_history")
	defer span.End()

	history, err := v.store.WatchHistory(ctx, userID, clampLimit(limit))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return history, nil
}

// RecordView moves videoID to the front of userID's watch history.
func (v *Views) RecordView(ctx context.Context, userID, videoID string) error {
	if !isUUID(userID) {
		return ErrUnauthenticated
	}
	if !isUUID(videoID) {
		return fmt.Errorf("%w: malformed video id %q", ErrInvalidTarget, videoID)
	}

	if err := v.store.RecordView(ctx, userID, videoID, v.now()); err != nil {
		if errors.Is(err, ErrUnknownActor) {
			return ErrUnauthenticated
		}
		return err
	}
	return nil
}

// Subscribers lists the users subscribed to a channel, newest first.
func (v *Views) Subscribers(ctx context.Context, channelID string, limit int) ([]models.Subscription, error) {
	if !isUUID(channelID) {
		return nil, fmt.Errorf("%w: malformed channel id %q", ErrInvalidTarget, channelID)
	}
	return v.store.Subscribers(ctx, channelID, clampLimit(limit))
}

// SubscribedChannels lists the channels a user subscribed to, newest first.
func (v *Views) SubscribedChannels(ctx context.Context, subscriberID string, limit int) ([]models.Subscription, error) {
	if !isUUID(subscriberID) {
		return nil, fmt.Errorf("%w: malformed subscriber id %q", ErrInvalidTarget, subscriberID)
	}
	return v.store.SubscribedChannels(ctx, subscriberID, clampLimit(limit))
}

// LikedVideos lists the videos userID liked, most recently liked first.
func (v *Views) LikedVideos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	if !isUUID(userID) {
		return nil, ErrUnauthenticated
	}
	return v.store.LikedVideos(ctx, userID, clampLimit(limit))
}

func (v *Views) now() time.Time {
	if v.NowFunc != nil {
		return v.NowFunc()
	}
	return time.Now().UTC()
}

func checkTarget(targetID string, kind models.RelationKind, targetType models.TargetType) error {
	if !kind.Accepts(targetType) {
		return fmt.Errorf("%w: %s cannot target a %s", ErrInvalidTarget, kind, targetType)
	}
	if !isUUID(targetID) {
		return fmt.Errorf("%w: malformed id %q", ErrInvalidTarget, targetID)
	}
	return nil
}

func isUUID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
