package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestManager(t *testing.T, now *time.Time) (*Manager, *InMemorySessionStore, *Codec) {
	t.Helper()
	opts := []CodecOption{}
	if now != nil {
		opts = append(opts, WithClock(func() time.Time { return *now }))
	}
	codec, err := NewCodec("test-secret", opts...)
	require.NoError(t, err)

	store := NewInMemorySessionStore()
	return NewManager(codec, time.Minute, time.Hour, store), store, codec
}

func TestManagerLoginStoresRefreshTokenID(t *testing.T) {
	manager, store, codec := newTestManager(t, nil)

	tokens, err := manager.Login(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	claims, err := codec.Verify(tokens.RefreshToken, KindRefresh)
	require.NoError(t, err)

	slot, ok := store.Current("user-1")
	require.True(t, ok)
	assert.Equal(t, claims.TokenID, slot.TokenID)
	assert.Equal(t, tokens.RefreshExpiresAt, slot.ExpiresAt)
}

func TestManagerLoginValidation(t *testing.T) {
	manager, _, _ := newTestManager(t, nil)
	_, err := manager.Login(context.Background(), "")
	assert.Error(t, err)
}

func TestManagerRefreshRotatesAndRejectsReplay(t *testing.T) {
	manager, store, codec := newTestManager(t, nil)
	ctx := context.Background()

	t1, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)

	t2, err := manager.Refresh(ctx, t1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, t1.RefreshToken, t2.RefreshToken)

	claims, err := codec.Verify(t2.RefreshToken, KindRefresh)
	require.NoError(t, err)
	slot, _ := store.Current("user-1")
	assert.Equal(t, claims.TokenID, slot.TokenID)

	_, err = manager.Refresh(ctx, t1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = manager.Refresh(ctx, t2.RefreshToken)
	assert.NoError(t, err)
}

func TestManagerLogoutInvalidatesRefresh(t *testing.T) {
	manager, store, _ := newTestManager(t, nil)
	ctx := context.Background()

	tokens, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(ctx, "user-1"))
	_, ok := store.Current("user-1")
	assert.False(t, ok)

	_, err = manager.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	assert.ErrorIs(t, manager.Logout(ctx, ""), ErrUnauthenticated)
}

func TestManagerLoginReplacesPreviousSession(t *testing.T) {
	manager, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	first, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)
	second, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = manager.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestManagerRefreshCodecFailures(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	manager, _, _ := newTestManager(t, &now)
	ctx := context.Background()

	tokens, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrWrongKind)

	_, err = manager.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrMalformedToken)

	now = now.Add(2 * time.Hour)
	_, err = manager.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManagerAuthenticate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	manager, _, _ := newTestManager(t, &now)

	tokens, err := manager.Login(context.Background(), "user-1")
	require.NoError(t, err)

	userID, err := manager.Authenticate(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = manager.Authenticate(tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	now = now.Add(2 * time.Minute)
	_, err = manager.Authenticate(tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManagerConcurrentRefreshSingleWinner(t *testing.T) {
	manager, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	tokens, err := manager.Login(ctx, "user-1")
	require.NoError(t, err)

	const attempts = 16
	var wins, rejected atomic.Int32
	winners := make([]string, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			next, err := manager.Refresh(ctx, tokens.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
				winners[i] = next.RefreshToken
				return nil
			case errors.Is(err, ErrInvalidSession):
				rejected.Add(1)
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(attempts-1), rejected.Load())

	for _, token := range winners {
		if token == "" {
			continue
		}
		_, err := manager.Refresh(ctx, token)
		assert.NoError(t, err)
	}
}
