// Package app assembles the token service: configuration, logging,
// database, token codec, services, and the HTTP server, with graceful
// shutdown ordering.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/northbeam/tokend/internal/auth/cache"
	httpapi "github.com/northbeam/tokend/internal/auth/http"
	"github.com/northbeam/tokend/internal/auth/identity/sqlite"
	"github.com/northbeam/tokend/internal/auth/service"
	"github.com/northbeam/tokend/pkg/jwtx"
	"github.com/northbeam/tokend/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         *sqlite.Store
	codec      *jwtx.Codec
	tokenCache *cache.TokenCache

	// Services
	tokenService      *service.TokenService
	expirationService *service.TokenExpirationService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokend",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(jwtx.Config{
		Issuer:      cfg.Issuer,
		Audience:    cfg.Audience,
		CurrentKey:  []byte(cfg.SigningKey),
		PreviousKey: previousKey(cfg.PreviousSigningKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.expirationService.Start()

	app.logger.Info("token service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the expiration sweeper and the cache janitor
	app.expirationService.Stop()
	app.tokenCache.Close()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes the business logic services.
func (app *Application) initServices() {
	app.tokenCache = cache.New(app.cfg.CacheSlidingTTL)

	app.tokenService = service.NewTokenService(
		app.codec,
		app.db,
		app.tokenCache,
		app.cfg.AccessTokenTTL,
		app.cfg.RefreshTokenTTL,
		app.cfg.MFATokenTTL,
	)

	app.expirationService = service.NewTokenExpirationService(
		app.db,
		app.logger,
		app.cfg.SweepInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(
		app.codec,
		app.cfg.RoutePrefix,
		BuildVersion,
		app.db,
		app.logger,
	)
	app.router.TokenService = app.tokenService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}

// previousKey maps the empty string to nil so the codec only enables the
// rotation window when a previous key is actually configured.
func previousKey(key string) []byte {
	if key == "" {
		return nil
	}
	return []byte(key)
}
