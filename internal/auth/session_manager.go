package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

var (
	// ErrUnauthenticated indicates the caller could not be identified from the presented token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidSession indicates the refresh token is not the one currently held for the user.
	ErrInvalidSession = errors.New("refresh token is expired or used")
	// ErrSubjectNotFound indicates the session subject does not exist in the store.
	ErrSubjectNotFound = errors.New("session subject not found")
)

// SessionStore persists the single refresh-session slot held for each user.
type SessionStore interface {
	// SaveSession overwrites the user's slot.
	SaveSession(ctx context.Context, userID string, session models.RefreshSession) error
	// RotateSession replaces the slot with next only while it still holds presentedID and
	// has not expired at now. It returns ErrInvalidSession otherwise.
	RotateSession(ctx context.Context, userID, presentedID string, next models.RefreshSession, now time.Time) error
	// ClearSession empties the user's slot.
	ClearSession(ctx context.Context, userID string) error
}

// Manager manages the lifecycle of issued session tokens backed by a persistent store.
type Manager struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration

	store SessionStore
}

// NewManager constructs a Manager that issues access and refresh tokens with the provided TTLs.
func NewManager(codec *Codec, accessTTL, refreshTTL time.Duration, store SessionStore) *Manager {
	if codec == nil {
		panic("auth: token codec must not be nil")
	}
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
	}
}

// Login issues a fresh token pair and makes its refresh token the user's only valid one.
func (m *Manager) Login(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	tokens, session, err := m.issuePair(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SaveSession(ctx, userID, session); err != nil {
		return models.SessionTokens{}, fmt.Errorf("save session: %w", err)
	}

	return tokens, nil
}

// Refresh exchanges the presented refresh token for a new pair, rotating the user's slot.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.refresh")
	defer span.End()

	claims, err := m.codec.Verify(refreshToken, KindRefresh)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	tokens, next, err := m.issuePair(claims.Subject)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.RotateSession(ctx, claims.Subject, claims.TokenID, next, m.codec.now()); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			logging.FromContext(ctx).Warn("refresh token rejected", slog.String("userId", claims.Subject))
			return models.SessionTokens{}, err
		}
		return models.SessionTokens{}, fmt.Errorf("rotate session: %w", err)
	}

	return tokens, nil
}

// Logout clears the user's slot so no previously issued refresh token can be used.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := m.store.ClearSession(ctx, userID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Authenticate resolves the user behind an access token without consulting the store.
func (m *Manager) Authenticate(accessToken string) (string, error) {
	claims, err := m.codec.Verify(accessToken, KindAccess)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return claims.Subject, nil
}

func (m *Manager) issuePair(userID string) (models.SessionTokens, models.RefreshSession, error) {
	access, err := m.codec.Issue(userID, KindAccess, m.accessTTL)
	if err != nil {
		return models.SessionTokens{}, models.RefreshSession{}, err
	}

	refresh, err := m.codec.Issue(userID, KindRefresh, m.refreshTTL)
	if err != nil {
		return models.SessionTokens{}, models.RefreshSession{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
	session := models.RefreshSession{TokenID: refresh.TokenID, ExpiresAt: refresh.ExpiresAt}
	return tokens, session, nil
}
