package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/middleware"
	"github.com/videotube/backend/internal/repositories"
	"github.com/videotube/backend/internal/social"
	"github.com/videotube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	codec, err := auth.NewCodec(cfg.TokenSecret)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure token codec: %w", err)
	}

	views := repositories.NewPostgresViewStore(pool)

	deps := handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(codec, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool)),
		Relationships: social.NewEngine(views, views),
		Views:         social.NewViews(views),
		DB:            pool,
		AuthLimiter: middleware.NewIPRateLimiter(
			cfg.AuthRateLimit.Requests,
			cfg.AuthRateLimit.Window,
			cfg.AuthRateLimit.Burst,
			cfg.AuthRateLimit.TTL,
		),
		Cookies:       handlers.CookieConfig{Secure: cfg.CookieSecure},
		UploadDir:     cfg.UploadDir,
		MaxUploadSize: cfg.MaxUploadSize,
	}

	if cfg.ObjectStore.Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, fmt.Errorf("configure object storage: %w", err)
		}
		deps.Uploads = s3Store
		return deps, nil
	}

	disk, err := storage.NewDiskStorage(filepath.Join(cfg.UploadDir, "media"), "media")
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure disk storage: %w", err)
	}
	deps.Uploads = disk
	deps.MediaDir = disk.Dir()

	return deps, nil
}
