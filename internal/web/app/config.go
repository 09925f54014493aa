package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

type Config struct {
	SessionSecrets      []string      // Required: SESSION_SECRET, comma separated; the first signs new cookies
	SessionCookieSecure bool          // Optional: Secure attribute on the session cookie (default: true)
	DatabaseDriver      string        // Optional: sqlite or postgres (default: sqlite)
	DatabaseFile        string        // Optional: SQLite database file (default: lodge.db)
	DatabaseURL         string        // Required for postgres: connection string
	DatabaseRetries     uint64        // Optional: startup ping retries (default: 5)
	PasswordHasher      string        // Optional: argon2id or bcrypt (default: argon2id)
	BcryptCost          int           // Optional: bcrypt cost (default: 10)
	PepperFile          string        // Optional: argon2id pepper file, created when missing (default: pepper)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment, after first loading DOTENV_FILE (default
// .env) when it exists. Variables already set in the environment win over
// the file.
func LoadConfig() (Config, error) {
	dotenv := getEnvOrDefault("DOTENV_FILE", ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", dotenv, err)
	}

	cfg := Config{
		SessionSecrets:      splitList(os.Getenv("SESSION_SECRET")),
		SessionCookieSecure: getEnvBoolOrDefault("SESSION_COOKIE_SECURE", true),
		DatabaseDriver:      getEnvOrDefault("DATABASE_DRIVER", DriverSQLite),
		DatabaseFile:        getEnvOrDefault("DATABASE_FILE", "lodge.db"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DatabaseRetries:     uint64(max(getEnvIntOrDefault("DATABASE_CONNECT_RETRIES", 5), 0)), // #nosec G115 - clamped above
		PasswordHasher:      getEnvOrDefault("PASSWORD_HASHER", HasherArgon2id),
		BcryptCost:          getEnvIntOrDefault("BCRYPT_COST", 10),
		PepperFile:          getEnvOrDefault("PEPPER_FILE", "pepper"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	return cfg, cfg.Validate()
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	if len(c.SessionSecrets) == 0 {
		return ErrMissingSessionSecret
	}

	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	switch c.PasswordHasher {
	case HasherArgon2id, HasherBcrypt:
	default:
		return fmt.Errorf("unsupported PASSWORD_HASHER %q", c.PasswordHasher)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}

	return nil
}

// ValidateDatabase checks only the settings OpenStore needs.
func (c Config) ValidateDatabase() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			return errors.New("DATABASE_FILE must not be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
