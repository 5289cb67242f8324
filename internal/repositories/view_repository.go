package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/social"
)

const (
	watchHistoryUserFK  = "watch_history_user_fk"
	watchHistoryVideoFK = "watch_history_video_fk"
)

// PostgresViewStore serves derived views, each with a single statement.
type PostgresViewStore struct {
	*PostgresRelationshipStore
}

// NewPostgresViewStore constructs a view store backed by PostgreSQL.
func NewPostgresViewStore(pool db.Pool) *PostgresViewStore {
	return &PostgresViewStore{PostgresRelationshipStore: NewPostgresRelationshipStore(pool)}
}

const channelProfileQuery = `
    SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
           (SELECT COUNT(*) FROM relationships s
             WHERE s.target_id = u.id AND s.target_type = 'channel' AND s.kind = 'subscription'),
           (SELECT COUNT(*) FROM relationships s
             WHERE s.actor_id = u.id AND s.target_type = 'channel' AND s.kind = 'subscription'),
           EXISTS (SELECT 1 FROM relationships s
             WHERE s.target_id = u.id AND s.actor_id = $2 AND s.target_type = 'channel' AND s.kind = 'subscription')
    FROM users u
    WHERE %s
`

// ChannelProfile projects a channel with its subscription counts for viewerID.
func (s *PostgresViewStore) ChannelProfile(ctx context.Context, viewerID string, lookup social.ChannelLookup) (models.ChannelProfile, error) {
	where, key := "u.id = $1", lookup.ID
	if lookup.ID == "" {
		where, key = "u.username = $1", lookup.Username
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, wrap("acquire connection", err)
	}
	defer conn.Release()

	var p models.ChannelProfile
	err = conn.QueryRow(ctx, fmt.Sprintf(channelProfileQuery, where), key, nullable(viewerID)).Scan(
		&p.ID, &p.Username, &p.FullName, &p.Email, &p.AvatarURL, &p.CoverImageURL,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepr {
			return models.ChannelProfile{}, fmt.Errorf("%w: channel not found", social.ErrInvalidTarget)
		}
		return models.ChannelProfile{}, wrap("select channel profile", err)
	}

	return p, nil
}

const likeStateQuery = `
    SELECT COUNT(r.id), COUNT(r.id) FILTER (WHERE r.actor_id = $2)
    FROM %s t
    LEFT JOIN relationships r
      ON r.target_id = t.id AND r.target_type = $3 AND r.kind = 'like'
    WHERE t.id = $1
    GROUP BY t.id
`

// LikeState counts likes on the target and checks whether viewerID is among them.
func (s *PostgresViewStore) LikeState(ctx context.Context, viewerID, targetID string, targetType models.TargetType) (models.LikeState, error) {
	table, ok := targetTables[targetType]
	if !ok || targetType == models.TargetChannel {
		return models.LikeState{}, fmt.Errorf("%w: %s cannot be liked", social.ErrInvalidTarget, targetType)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.LikeState{}, wrap("acquire connection", err)
	}
	defer conn.Release()

	var state models.LikeState
	var mine int64
	err = conn.QueryRow(ctx, fmt.Sprintf(likeStateQuery, table), targetID, nullable(viewerID), string(targetType)).Scan(&state.LikesCount, &mine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepr {
			return models.LikeState{}, fmt.Errorf("%w: %s not found", social.ErrInvalidTarget, targetType)
		}
		return models.LikeState{}, wrap("select like state", err)
	}

	state.IsLiked = mine > 0
	return state, nil
}

// RecordView upserts the watch-history entry so a re-viewed video moves to the front.
func (s *PostgresViewStore) RecordView(ctx context.Context, userID, videoID string, at time.Time) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return wrap("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, viewed_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, video_id) DO UPDATE SET viewed_at = EXCLUDED.viewed_at
    `, userID, videoID, at.UTC())
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			switch pgConstraint(err) {
			case watchHistoryUserFK:
				return social.ErrUnknownActor
			case watchHistoryVideoFK:
				return fmt.Errorf("%w: video not found", social.ErrInvalidTarget)
			}
		}
		return wrap("upsert watch history", err)
	}

	return nil
}

// WatchHistory lists the videos userID watched, most recent first.
func (s *PostgresViewStore) WatchHistory(ctx context.Context, userID string, limit int) ([]models.WatchedVideo, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.description, v.thumbnail_url, v.video_url, v.duration, v.views, v.created_at,
               o.id, o.username, o.full_name, o.avatar_url, w.viewed_at
        FROM watch_history w
        JOIN videos v ON v.id = w.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE w.user_id = $1
        ORDER BY w.viewed_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, wrap("query watch history", err)
	}
	defer rows.Close()

	history := []models.WatchedVideo{}
	for rows.Next() {
		var entry models.WatchedVideo
		v := &entry.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.ThumbnailURL, &v.VideoURL, &v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName, &v.Owner.AvatarURL, &entry.ViewedAt); err != nil {
			return nil, wrap("scan watch history", err)
		}
		v.OwnerID = v.Owner.ID
		entry.ViewedAt = entry.ViewedAt.UTC()
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("iterate watch history", err)
	}

	return history, nil
}

// Subscribers lists the users subscribed to channelID, newest first.
func (s *PostgresViewStore) Subscribers(ctx context.Context, channelID string, limit int) ([]models.Subscription, error) {
	return s.subscriptions(ctx, "list subscribers", `
        SELECT u.id, u.username, u.full_name, u.avatar_url, r.created_at
        FROM relationships r
        JOIN users u ON u.id = r.actor_id
        WHERE r.target_id = $1 AND r.target_type = 'channel' AND r.kind = 'subscription'
        ORDER BY r.created_at DESC
        LIMIT $2
    `, channelID, limit)
}

// SubscribedChannels lists the channels subscriberID follows, newest first.
func (s *PostgresViewStore) SubscribedChannels(ctx context.Context, subscriberID string, limit int) ([]models.Subscription, error) {
	return s.subscriptions(ctx, "list subscribed channels", `
        SELECT u.id, u.username, u.full_name, u.avatar_url, r.created_at
        FROM relationships r
        JOIN users u ON u.id = r.target_id
        WHERE r.actor_id = $1 AND r.target_type = 'channel' AND r.kind = 'subscription'
        ORDER BY r.created_at DESC
        LIMIT $2
    `, subscriberID, limit)
}

func (s *PostgresViewStore) subscriptions(ctx context.Context, op, query string, id string, limit int) ([]models.Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, id, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	subs := []models.Subscription{}
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.User.ID, &sub.User.Username, &sub.User.FullName, &sub.User.AvatarURL, &sub.SubscribedAt); err != nil {
			return nil, wrap(op, err)
		}
		sub.SubscribedAt = sub.SubscribedAt.UTC()
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}

	return subs, nil
}

// LikedVideos lists the videos userID liked, most recently liked first.
func (s *PostgresViewStore) LikedVideos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, wrap("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.description, v.thumbnail_url, v.video_url, v.duration, v.views, v.created_at,
               o.id, o.username, o.full_name, o.avatar_url
        FROM relationships r
        JOIN videos v ON v.id = r.target_id
        JOIN users o ON o.id = v.owner_id
        WHERE r.actor_id = $1 AND r.target_type = 'video' AND r.kind = 'like'
        ORDER BY r.created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, wrap("query liked videos", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.ThumbnailURL, &v.VideoURL, &v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName, &v.Owner.AvatarURL); err != nil {
			return nil, wrap("scan liked video", err)
		}
		v.OwnerID = v.Owner.ID
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("iterate liked videos", err)
	}

	return videos, nil
}

// nullable turns an anonymous viewer into SQL NULL so viewer predicates never match.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

var _ social.ViewStore = (*PostgresViewStore)(nil)
