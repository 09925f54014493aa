package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpapi "github.com/aussiebroadwan/lodge/internal/web/http"
	"github.com/aussiebroadwan/lodge/internal/web/metrics"
	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/internal/web/session"
	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/pkg/cryptox"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application holds the web server and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	metrics *metrics.Metrics
	flow    *service.Flow

	server *http.Server
	router *httpapi.Router
}

// New wires the application from cfg. The database is reachable and
// migrated when New returns.
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}

	db, err := OpenStore(ctx, cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.flow.Auth.Store = db

	if err := app.initHTTP(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "lodge",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// Handler is the fully wrapped HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves until ctx is cancelled or the server fails, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("lodge starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutdown signal received", "cause", context.Cause(ctx))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests for up to the grace period and closes
// the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down lodge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("lodge stopped")
	return nil
}

// initServices builds the hasher, session codec and auth flow. The store is
// attached once the database is open.
func (app *Application) initServices() error {
	hasher, err := NewHasher(app.cfg)
	if err != nil {
		return err
	}

	codecCfg := session.DefaultConfig(app.cfg.SessionSecrets...)
	codecCfg.Secure = app.cfg.SessionCookieSecure
	codec, err := session.NewCodec(codecCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sessions: %w", err)
	}

	app.metrics = metrics.New()
	app.flow = &service.Flow{
		Auth:     &service.AuthService{Hasher: hasher},
		Sessions: codec,
		Metrics:  app.metrics,
	}
	return nil
}

func (app *Application) initHTTP() error {
	pages, err := httpapi.ParsePages()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	router := httpapi.NewRouter(app.flow, app.db, app.metrics, pages, BuildVersion, app.logger)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// NewHasher returns the configured password hasher. Whichever scheme is
// primary, digests from the other one still verify.
func NewHasher(cfg Config) (*cryptox.MultiHasher, error) {
	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	argon := cryptox.NewArgon2idHasher(pepper)
	bcrypt := cryptox.NewBcryptHasher(cfg.BcryptCost)

	if cfg.PasswordHasher == HasherBcrypt {
		return cryptox.NewMultiHasher(bcrypt, argon), nil
	}
	return cryptox.NewMultiHasher(argon, bcrypt), nil
}
