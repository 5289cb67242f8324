package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/handlers"
	"github.com/videotube/backend/internal/httpserver"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/middleware"
)

// Run bootstraps the VideoTube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}

	handler := middleware.RequestLogger(logger)(
		middleware.CORS(cfg.CORSOrigins)(
			chimiddleware.Timeout(cfg.RequestTimeout)(
				handlers.NewRouter(deps),
			),
		),
	)

	srv := httpserver.New(cfg.AppPort, handler, cfg.RequestTimeout)

	listener, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting http server", "port", cfg.AppPort, "objectStore", cfg.ObjectStore.Enabled())

	if err := srv.Run(ctx, listener); err != nil {
		return err
	}

	logger.Info("http server stopped")
	return nil
}

func connect(ctx context.Context, cfg config.Config) (db.Pool, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}
