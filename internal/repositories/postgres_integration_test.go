//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/social"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := user
	dup.ID = uuid.NewString()
	dup.Username = "alice2"
	require.ErrorIs(t, repo.Create(ctx, dup), ErrConflict, "duplicate email")

	dup.Email = "other@example.com"
	dup.Username = "alice"
	require.ErrorIs(t, repo.Create(ctx, dup), ErrConflict, "duplicate username")

	byEmail, err := repo.FindByLogin(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := repo.FindByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	updated, err := repo.UpdateAccount(ctx, user.ID, "Alice Updated", "new@example.com", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "Alice Updated", updated.FullName)
	assert.Equal(t, "new@example.com", updated.Email)

	avatar, err := repo.UpdateAvatar(ctx, user.ID, "https://cdn.example.com/a.png", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", avatar.AvatarURL)

	cover, err := repo.UpdateCoverImage(ctx, user.ID, "https://cdn.example.com/c.png", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/c.png", cover.CoverImageURL)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "rotated-hash", time.Now().UTC()))
	fetched, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated-hash", fetched.PasswordHash)

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdatePassword(ctx, uuid.NewString(), "x", time.Now()), ErrNotFound)
	_, err = repo.UpdateAccount(ctx, uuid.NewString(), "x", "y@example.com", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "owner")
	store := NewPostgresSessionStore(testPool)
	now := time.Now().UTC()

	first := models.RefreshSession{TokenID: "t1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, user.ID, first))

	second := models.RefreshSession{TokenID: "t2", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.RotateSession(ctx, user.ID, "t1", second, now))

	assert.ErrorIs(t, store.RotateSession(ctx, user.ID, "t1", first, now), auth.ErrInvalidSession)
	assert.ErrorIs(t, store.RotateSession(ctx, user.ID, "t2", first, now.Add(2*time.Hour)), auth.ErrInvalidSession)

	require.NoError(t, store.ClearSession(ctx, user.ID))
	assert.ErrorIs(t, store.RotateSession(ctx, user.ID, "t2", first, now), auth.ErrInvalidSession)

	assert.ErrorIs(t, store.SaveSession(ctx, uuid.NewString(), first), auth.ErrSubjectNotFound)
	assert.ErrorIs(t, store.ClearSession(ctx, uuid.NewString()), auth.ErrSubjectNotFound)
}

func TestSessionManager_ConcurrentRefreshAgainstStore(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresUserRepository(testPool), "racer")
	codec, err := auth.NewCodec("integration-secret")
	require.NoError(t, err)
	manager := auth.NewManager(codec, time.Minute, time.Hour, NewPostgresSessionStore(testPool))

	t1, err := manager.Login(ctx, user.ID)
	require.NoError(t, err)

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := manager.Refresh(ctx, t1.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
				return nil
			case errors.Is(err, auth.ErrInvalidSession):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())

	_, err = manager.Refresh(ctx, t1.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}

func TestPostgresRelationshipStore_InsertDeleteCount(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	store := NewPostgresRelationshipStore(testPool)

	key := models.RelationshipKey{ActorID: alice.ID, TargetID: bob.ID, TargetType: models.TargetChannel, Kind: models.KindSubscription}
	rel := models.Relationship{ID: uuid.NewString(), RelationshipKey: key, CreatedAt: time.Now().UTC()}

	require.NoError(t, store.Insert(ctx, rel))

	rel.ID = uuid.NewString()
	assert.ErrorIs(t, store.Insert(ctx, rel), social.ErrDuplicateRelationship)

	ghost := rel
	ghost.ID = uuid.NewString()
	ghost.ActorID = uuid.NewString()
	assert.ErrorIs(t, store.Insert(ctx, ghost), social.ErrUnknownActor)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := store.Count(ctx, bob.ID, models.KindSubscription, models.TargetChannel)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	found, err := store.TargetExists(ctx, models.TargetChannel, bob.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = store.TargetExists(ctx, models.TargetVideo, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngine_ConcurrentTogglesNeverDuplicate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	videoID := createTestVideo(t, bob.ID, "clip")

	store := NewPostgresViewStore(testPool)
	engine := social.NewEngine(store, store)

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := engine.Toggle(ctx, alice.ID, videoID, models.KindLike, models.TargetVideo)
			if errors.Is(err, social.ErrConflictRetryExhausted) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	state, err := store.LikeState(ctx, alice.ID, videoID, models.TargetVideo)
	require.NoError(t, err)
	assert.LessOrEqual(t, state.LikesCount, int64(1))
	assert.Equal(t, state.IsLiked, state.LikesCount == 1)
}

func TestPostgresViewStore_Projections(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")
	first := createTestVideo(t, bob.ID, "first")
	second := createTestVideo(t, bob.ID, "second")

	store := NewPostgresViewStore(testPool)
	engine := social.NewEngine(store, store)
	views := social.NewViews(store)

	_, err := engine.Toggle(ctx, alice.ID, bob.ID, models.KindSubscription, models.TargetChannel)
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, bob.ID, alice.ID, models.KindSubscription, models.TargetChannel)
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, alice.ID, first, models.KindLike, models.TargetVideo)
	require.NoError(t, err)

	profile, err := views.ProjectChannelProfileByUsername(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, profile.ID)
	assert.Equal(t, int64(1), profile.SubscribersCount)
	assert.Equal(t, int64(1), profile.ChannelsSubscribedToCount)
	assert.True(t, profile.IsSubscribed)

	anonymous, err := views.ProjectChannelProfile(ctx, "", bob.ID)
	require.NoError(t, err)
	assert.False(t, anonymous.IsSubscribed)

	_, err = views.ProjectChannelProfile(ctx, alice.ID, uuid.NewString())
	assert.ErrorIs(t, err, social.ErrInvalidTarget)

	likes, err := views.ProjectLikeState(ctx, alice.ID, first, models.TargetVideo)
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{LikesCount: 1, IsLiked: true}, likes)

	likes, err = views.ProjectLikeState(ctx, bob.ID, first, models.TargetVideo)
	require.NoError(t, err)
	assert.Equal(t, models.LikeState{LikesCount: 1, IsLiked: false}, likes)

	_, err = views.ProjectLikeState(ctx, alice.ID, uuid.NewString(), models.TargetVideo)
	assert.ErrorIs(t, err, social.ErrInvalidTarget)

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.RecordView(ctx, alice.ID, first, base))
	require.NoError(t, store.RecordView(ctx, alice.ID, second, base.Add(time.Second)))
	require.NoError(t, store.RecordView(ctx, alice.ID, first, base.Add(2*time.Second)))

	history, err := views.ProjectWatchHistory(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first, history[0].ID)
	assert.Equal(t, "bob", history[0].Owner.Username)
	assert.Equal(t, second, history[1].ID)

	assert.ErrorIs(t, views.RecordView(ctx, alice.ID, uuid.NewString()), social.ErrInvalidTarget)
	assert.ErrorIs(t, views.RecordView(ctx, uuid.NewString(), first), social.ErrUnauthenticated)

	subscribers, err := views.Subscribers(ctx, bob.ID, 10)
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, alice.ID, subscribers[0].User.ID)

	channels, err := views.SubscribedChannels(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, bob.ID, channels[0].User.ID)

	liked, err := views.LikedVideos(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, first, liked[0].ID)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		contents, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := testPool.Exec(ctx, `TRUNCATE watch_history, relationships, comments, tweets, videos, users CASCADE`); err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username + " tester",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestVideo(t *testing.T, ownerID, title string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := testPool.Exec(context.Background(), `
        INSERT INTO videos (id, owner_id, title) VALUES ($1, $2, $3)
    `, id, ownerID, title); err != nil {
		t.Fatalf("create video %s: %v", title, err)
	}
	return id
}
