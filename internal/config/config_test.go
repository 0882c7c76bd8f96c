package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/transform"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cyphersql.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, transform.DefaultCacheSize, cfg.CacheSize)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
schema = "graph.cue"
dialect = "postgres"
max_depth = 6

[database]
driver = "pgx"
dsn = "postgres://localhost/graph"

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "graph.cue", cfg.Schema)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 6, cfg.MaxDepth)
	assert.Equal(t, transform.DefaultCacheSize, cfg.CacheSize, "unset keys keep defaults")
	assert.Equal(t, DatabaseConfig{Driver: "pgx", DSN: "postgres://localhost/graph"}, cfg.Database)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "dialekt = \"sqlite\"\n[log]\ncolour = true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.Contains(t, err.Error(), "dialekt")
	assert.Contains(t, err.Error(), "log.colour")
}

func TestLoad_BadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "dialect = \n"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "dialect = \"postgres\"\nmax_depth = 2\n")
	t.Setenv("CYPHERSQL_DIALECT", "sqlite")
	t.Setenv("CYPHERSQL_MAX_DEPTH", "9")
	t.Setenv("CYPHERSQL_SCHEMA", "env.cue")
	t.Setenv("CYPHERSQL_LOG_LEVEL", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, 9, cfg.MaxDepth)
	assert.Equal(t, "env.cue", cfg.Schema)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("CYPHERSQL_CACHE_SIZE", "lots")
	_, err := Load(writeConfig(t, ""))
	assert.ErrorContains(t, err, "CYPHERSQL_CACHE_SIZE")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Dialect = "oracle"
	cfg.MaxDepth = -1
	cfg.CacheSize = -1
	cfg.Database.Driver = "mysql"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"dialect", "max_depth", "cache_size", "database.driver", "log.level", "log.format"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTransformOptions(t *testing.T) {
	cfg := Default()
	cfg.Dialect = "pgx"
	cfg.MaxDepth = 4
	assert.Len(t, cfg.TransformOptions(), 3)
}
