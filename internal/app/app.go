// Package app provides application initialization and lifecycle management.
//
// App is the container that wires the configured store backend, the Genkit
// model driver, and the relay responder together for the HTTP server.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/chatrelay/internal/config"
	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit    *genkit.Genkit
	Store     store.Store
	Responder *relay.Responder

	// Pool is non-nil only for the postgres backend.
	Pool *pgxpool.Pool
}

// Close releases all resources held by the application.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
