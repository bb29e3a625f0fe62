// Package config loads the service configuration from the environment.
//
// Values come from real environment variables first, then from an optional
// .env file (godotenv never overrides a variable that is already set), then
// from the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port            int
	StoreDriver     string
	DBPath          string // sqlite file, or ":memory:"
	DatabaseURL     string // postgres connection string
	GatewaySecret   string // empty disables gateway authentication
	ConfirmRemovals bool
	TokenMaxBytes   int
	CodeAttempts    int
	DispatchWorkers int
	LogLevel        string
}

// Load reads envFile if it is set (it must then exist), otherwise .env in the
// working directory if there is one.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var errs []error
	cfg := Config{
		Port:            getInt("PORT", 8080, &errs),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		DBPath:          getEnv("DB_PATH", "data/lists.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		GatewaySecret:   getEnv("GATEWAY_SECRET", ""),
		ConfirmRemovals: getBool("CONFIRM_REMOVALS", true, &errs),
		TokenMaxBytes:   getInt("TOKEN_MAX_BYTES", 64, &errs),
		CodeAttempts:    getInt("CODE_ATTEMPTS", 10, &errs),
		DispatchWorkers: getInt("DISPATCH_WORKERS", 8, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
	errs = append(errs, cfg.Validate())

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot catch one variable at a time.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of sqlite, postgres, memory", c.StoreDriver))
	}
	// An id-addressed item token on a group list has to fit:
	// "aski|g482913|" plus a 20-character item id is 33 bytes.
	if c.TokenMaxBytes < 40 {
		errs = append(errs, fmt.Errorf("TOKEN_MAX_BYTES %d is too small (min 40)", c.TokenMaxBytes))
	}
	if c.CodeAttempts < 1 {
		errs = append(errs, fmt.Errorf("CODE_ATTEMPTS must be positive, got %d", c.CodeAttempts))
	}
	if c.DispatchWorkers < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", c.DispatchWorkers))
	}
	if c.GatewaySecret != "" && len(c.GatewaySecret) < 16 {
		errs = append(errs, errors.New("GATEWAY_SECRET must be at least 16 characters"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, value))
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return b
}
