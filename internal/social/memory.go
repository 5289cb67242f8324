package social

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/videotube/backend/internal/models"
)

// InMemoryStore implements RelationshipStore, TargetResolver and ViewStore for tests
// and local development. The relationship map enforces the same uniqueness as the
// database index.
type InMemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	videos        map[string]models.Video
	targets       map[models.TargetType]map[string]struct{}
	relationships map[models.RelationshipKey]models.Relationship
	history       map[string]map[string]time.Time
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]models.User),
		videos:        make(map[string]models.Video),
		targets:       make(map[models.TargetType]map[string]struct{}),
		relationships: make(map[models.RelationshipKey]models.Relationship),
		history:       make(map[string]map[string]time.Time),
	}
}

// AddUser registers a user, which is also a channel.
func (s *InMemoryStore) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	s.addTargetLocked(models.TargetChannel, user.ID)
}

// AddVideo registers a video owned by an existing user.
func (s *InMemoryStore) AddVideo(video models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	s.addTargetLocked(models.TargetVideo, video.ID)
}

// AddTarget registers a comment or tweet id.
func (s *InMemoryStore) AddTarget(targetType models.TargetType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addTargetLocked(targetType, id)
}

func (s *InMemoryStore) addTargetLocked(targetType models.TargetType, id string) {
	ids, ok := s.targets[targetType]
	if !ok {
		ids = make(map[string]struct{})
		s.targets[targetType] = ids
	}
	ids[id] = struct{}{}
}

// TargetExists implements TargetResolver.
func (s *InMemoryStore) TargetExists(_ context.Context, targetType models.TargetType, targetID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.targets[targetType][targetID]
	return ok, nil
}

// Exists implements RelationshipStore.
func (s *InMemoryStore) Exists(_ context.Context, key models.RelationshipKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relationships[key]
	return ok, nil
}

// Insert implements RelationshipStore.
func (s *InMemoryStore) Insert(_ context.Context, rel models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rel.ActorID]; !ok {
		return ErrUnknownActor
	}
	if _, ok := s.relationships[rel.RelationshipKey]; ok {
		return ErrDuplicateRelationship
	}
	s.relationships[rel.RelationshipKey] = rel
	return nil
}

// Delete implements RelationshipStore.
func (s *InMemoryStore) Delete(_ context.Context, key models.RelationshipKey) error {
	s.mu.Lock()
	delete(s.relationships, key)
	s.mu.Unlock()
	return nil
}

// Count implements ViewStore.
func (s *InMemoryStore) Count(_ context.Context, targetID string, kind models.RelationKind, targetType models.TargetType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(func(k models.RelationshipKey) bool {
		return k.TargetID == targetID && k.Kind == kind && k.TargetType == targetType
	}), nil
}

func (s *InMemoryStore) countLocked(match func(models.RelationshipKey) bool) int64 {
	var n int64
	for key := range s.relationships {
		if match(key) {
			n++
		}
	}
	return n
}

// ChannelProfile implements ViewStore.
func (s *InMemoryStore) ChannelProfile(_ context.Context, viewerID string, lookup ChannelLookup) (models.ChannelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[lookup.ID]
	if lookup.ID == "" {
		ok = false
		for _, candidate := range s.users {
			if candidate.Username == lookup.Username {
				user, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return models.ChannelProfile{}, fmt.Errorf("%w: channel not found", ErrInvalidTarget)
	}

	subscription := func(actor, target string) models.RelationshipKey {
		return models.RelationshipKey{ActorID: actor, TargetID: target, TargetType: models.TargetChannel, Kind: models.KindSubscription}
	}
	_, subscribed := s.relationships[subscription(viewerID, user.ID)]

	return models.ChannelProfile{
		ID:            user.ID,
		Username:      user.Username,
		FullName:      user.FullName,
		Email:         user.Email,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		SubscribersCount: s.countLocked(func(k models.RelationshipKey) bool {
			return k.TargetID == user.ID && k.Kind == models.KindSubscription
		}),
		ChannelsSubscribedToCount: s.countLocked(func(k models.RelationshipKey) bool {
			return k.ActorID == user.ID && k.Kind == models.KindSubscription
		}),
		IsSubscribed: viewerID != "" && subscribed,
	}, nil
}

// LikeState implements ViewStore.
func (s *InMemoryStore) LikeState(_ context.Context, viewerID, targetID string, targetType models.TargetType) (models.LikeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.targets[targetType][targetID]; !ok {
		return models.LikeState{}, fmt.Errorf("%w: %s not found", ErrInvalidTarget, targetType)
	}

	key := models.RelationshipKey{ActorID: viewerID, TargetID: targetID, TargetType: targetType, Kind: models.KindLike}
	_, liked := s.relationships[key]
	return models.LikeState{
		LikesCount: s.countLocked(func(k models.RelationshipKey) bool {
			return k.TargetID == targetID && k.TargetType == targetType && k.Kind == models.KindLike
		}),
		IsLiked: viewerID != "" && liked,
	}, nil
}

// RecordView implements ViewStore.
func (s *InMemoryStore) RecordView(_ context.Context, userID, videoID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUnknownActor
	}
	if _, ok := s.videos[videoID]; !ok {
		return fmt.Errorf("%w: video not found", ErrInvalidTarget)
	}

	views, ok := s.history[userID]
	if !ok {
		views = make(map[string]time.Time)
		s.history[userID] = views
	}
	views[videoID] = at
	return nil
}

// WatchHistory implements ViewStore.
func (s *InMemoryStore) WatchHistory(_ context.Context, userID string, limit int) ([]models.WatchedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]models.WatchedVideo, 0, len(s.history[userID]))
	for videoID, viewedAt := range s.history[userID] {
		history = append(history, models.WatchedVideo{Video: s.videoLocked(videoID), ViewedAt: viewedAt})
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].ViewedAt.After(history[j].ViewedAt)
	})
	return truncate(history, limit), nil
}

// Subscribers implements ViewStore.
func (s *InMemoryStore) Subscribers(_ context.Context, channelID string, limit int) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Subscription
	for key, rel := range s.relationships {
		if key.Kind == models.KindSubscription && key.TargetID == channelID {
			out = append(out, models.Subscription{User: s.users[key.ActorID].Public(), SubscribedAt: rel.CreatedAt})
		}
	}
	return truncate(newestFirst(out), limit), nil
}

// SubscribedChannels implements ViewStore.
func (s *InMemoryStore) SubscribedChannels(_ context.Context, subscriberID string, limit int) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Subscription
	for key, rel := range s.relationships {
		if key.Kind == models.KindSubscription && key.ActorID == subscriberID {
			out = append(out, models.Subscription{User: s.users[key.TargetID].Public(), SubscribedAt: rel.CreatedAt})
		}
	}
	return truncate(newestFirst(out), limit), nil
}

// LikedVideos implements ViewStore.
func (s *InMemoryStore) LikedVideos(_ context.Context, userID string, limit int) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var likes []models.Relationship
	for key, rel := range s.relationships {
		if key.Kind == models.KindLike && key.TargetType == models.TargetVideo && key.ActorID == userID {
			likes = append(likes, rel)
		}
	}
	sort.Slice(likes, func(i, j int) bool {
		return likes[i].CreatedAt.After(likes[j].CreatedAt)
	})

	out := make([]models.Video, 0, len(likes))
	for _, like := range likes {
		out = append(out, s.videoLocked(like.TargetID))
	}
	return truncate(out, limit), nil
}

func (s *InMemoryStore) videoLocked(id string) models.Video {
	video := s.videos[id]
	video.Owner = s.users[video.OwnerID].Public()
	return video
}

func newestFirst(subs []models.Subscription) []models.Subscription {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].SubscribedAt.After(subs[j].SubscribedAt)
	})
	return subs
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var (
	_ RelationshipStore = (*InMemoryStore)(nil)
	_ TargetResolver    = (*InMemoryStore)(nil)
	_ ViewStore         = (*InMemoryStore)(nil)
)
