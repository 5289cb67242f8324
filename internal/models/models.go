package models

import "time"

// User represents an account (and its channel) on the VideoTube platform.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	PasswordHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public strips credentials and contact details from the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

// PublicUser is the subset of a user that may be shown to other users.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// RefreshSession is the single refresh-token slot held for a user.
type RefreshSession struct {
	TokenID   string
	ExpiresAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// RelationKind names the kind of edge between an actor and a target.
type RelationKind string

const (
	KindSubscription RelationKind = "subscription"
	KindLike         RelationKind = "like"
)

// TargetType names what a relationship points at.
type TargetType string

const (
	TargetChannel TargetType = "channel"
	TargetVideo   TargetType = "video"
	TargetComment TargetType = "comment"
	TargetTweet   TargetType = "tweet"
)

// Accepts reports whether the relation kind may point at the target type.
func (k RelationKind) Accepts(t TargetType) bool {
	switch k {
	case KindSubscription:
		return t == TargetChannel
	case KindLike:
		return t == TargetVideo || t == TargetComment || t == TargetTweet
	default:
		return false
	}
}

// RelationshipKey identifies at most one relationship.
type RelationshipKey struct {
	ActorID    string
	TargetID   string
	TargetType TargetType
	Kind       RelationKind
}

// Relationship is a persisted edge. Its presence means the relation is active.
type Relationship struct {
	ID string
	RelationshipKey
	CreatedAt time.Time
}

// ToggleResult reports the state of a relationship after a toggle.
type ToggleResult struct {
	Active bool `json:"active"`
}

// ChannelProfile is the public projection of a channel as seen by a viewer.
type ChannelProfile struct {
	ID                        string `json:"id"`
	Username                  string `json:"username"`
	FullName                  string `json:"fullName"`
	Email                     string `json:"email"`
	AvatarURL                 string `json:"avatar"`
	CoverImageURL             string `json:"coverImage"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
}

// LikeState is the like projection of a single target as seen by a viewer.
type LikeState struct {
	LikesCount int64 `json:"likesCount"`
	IsLiked    bool  `json:"isLiked"`
}

// Video is the minimal video record needed to resolve like and history targets.
type Video struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"-"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ThumbnailURL string     `json:"thumbnail"`
	VideoURL     string     `json:"videoFile"`
	Duration     float64    `json:"duration"`
	Views        int64      `json:"views"`
	CreatedAt    time.Time  `json:"createdAt"`
	Owner        PublicUser `json:"owner"`
}

// WatchedVideo is a watch-history entry.
type WatchedVideo struct {
	Video
	ViewedAt time.Time `json:"viewedAt"`
}

// Subscription lists a channel a user follows, or a follower of a channel.
type Subscription struct {
	User         PublicUser `json:"user"`
	SubscribedAt time.Time  `json:"subscribedAt"`
}
