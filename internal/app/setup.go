package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/chatrelay/db"
	"github.com/koopa0/chatrelay/internal/config"
	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	st, pool, err := provideStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	driver := relay.NewModelDriver(g, cfg.ModelName, cfg.SystemPrompt, logger)
	a.Responder = relay.NewResponder(st, driver, logger)

	return a, nil
}

// provideGenkit initializes Genkit with the Gemini provider.
// The plugin reads GEMINI_API_KEY (or GOOGLE_API_KEY) from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	return g, nil
}

// provideStore creates the configured store backend.
// For postgres it runs migrations first and returns the pool for cleanup.
func provideStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, *pgxpool.Pool, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres store backend")
		return store.NewPostgres(pool, logger), pool, nil

	default:
		logger.Info("using in-memory store backend")
		return store.NewMemory(logger), nil, nil
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
