package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "STORE_DRIVER", "DB_PATH", "DATABASE_URL", "GATEWAY_SECRET",
	"CONFIRM_REMOVALS", "TOKEN_MAX_BYTES", "CODE_ATTEMPTS", "DISPATCH_WORKERS", "LOG_LEVEL",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Config{
		Port:            8080,
		StoreDriver:     DriverSQLite,
		DBPath:          "data/lists.db",
		ConfirmRemovals: true,
		TokenMaxBytes:   64,
		CodeAttempts:    10,
		DispatchWorkers: 8,
		LogLevel:        "info",
	}, cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://lists@localhost/lists")
	t.Setenv("CONFIRM_REMOVALS", "false")
	t.Setenv("DISPATCH_WORKERS", "2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://lists@localhost/lists", cfg.DatabaseURL)
	assert.False(t, cfg.ConfirmRemovals)
	assert.Equal(t, 2, cfg.DispatchWorkers)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000") // real env wins over the file

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"PORT=1234\nSTORE_DRIVER=memory\nGATEWAY_SECRET=0123456789abcdef\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "0123456789abcdef", cfg.GatewaySecret)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad bool", map[string]string{"CONFIRM_REMOVALS": "maybe"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"tiny token limit", map[string]string{"TOKEN_MAX_BYTES": "8"}},
		{"zero attempts", map[string]string{"CODE_ATTEMPTS": "0"}},
		{"zero workers", map[string]string{"DISPATCH_WORKERS": "0"}},
		{"short secret", map[string]string{"GATEWAY_SECRET": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
