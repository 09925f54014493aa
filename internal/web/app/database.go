package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/internal/web/store/drivers/postgres"
	"github.com/aussiebroadwan/lodge/internal/web/store/drivers/sqlite"
)

const pingBackoffBase = 200 * time.Millisecond

// OpenStore connects to the configured database, waits for it to answer and
// applies pending migrations.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.DatabaseDriver {
	case DriverPostgres:
		st, err = postgres.NewStore(ctx, cfg.DatabaseURL)
	default:
		st, err = sqlite.NewStore(sqliteDSN(cfg.DatabaseFile))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := waitForStore(ctx, st, cfg.DatabaseRetries, logger); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	empty, err := st.Users().IsEmpty(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to inspect users: %w", err)
	}

	logger.Info("database ready", slog.String("driver", cfg.DatabaseDriver))
	if empty {
		logger.Info("no users registered yet; the first visitor can sign up at /login")
	}
	return st, nil
}

// sqliteDSN opens file in WAL mode. Transactions take the write lock when
// they begin, so a read snapshot is never upgraded after another writer has
// committed.
func sqliteDSN(file string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", file)
}

// waitForStore pings st with exponential backoff, giving up after retries
// additional attempts.
func waitForStore(ctx context.Context, st store.Store, retries uint64, logger *slog.Logger) error {
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(pingBackoffBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := st.Ping(ctx); err != nil {
			logger.Warn("database ping failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
}
