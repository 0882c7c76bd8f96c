// Package config loads translator settings from a TOML file and
// CYPHERSQL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/transform"
)

// DefaultFile is the config file read when no path is given, relative to
// the working directory.
const DefaultFile = "cyphersql.toml"

// Config holds every tunable of the CLI.
//
// Precedence, lowest first: defaults, config file, environment, flags. The
// CLI applies flags itself after Load.
type Config struct {
	// Schema is the path of the schema description (.cue, .json, .yaml).
	Schema string `toml:"schema"`

	// Dialect is sqlite or postgres.
	Dialect string `toml:"dialect"`

	// MaxDepth caps unbounded variable-length relationships; 0 rejects them.
	MaxDepth int `toml:"max_depth"`

	// CacheSize is the translation cache capacity; 0 disables caching.
	CacheSize int `toml:"cache_size"`

	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig selects the database exec runs statements against.
type DatabaseConfig struct {
	// Driver is sqlite3 or pgx.
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// LogConfig controls the stderr log handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Dialect:   string(querysql.SQLite),
		CacheSize: transform.DefaultCacheSize,
		Database:  DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"},
		Log:       LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path reads DefaultFile when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile rejects keys the Config does not declare, so a typo in a
// config file fails loudly instead of being ignored.
func (c *Config) decodeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overrides fields from CYPHERSQL_* variables. Set but empty
// variables are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CYPHERSQL_SCHEMA", &c.Schema)
	str("CYPHERSQL_DIALECT", &c.Dialect)
	str("CYPHERSQL_DB_DRIVER", &c.Database.Driver)
	str("CYPHERSQL_DB_DSN", &c.Database.DSN)
	str("CYPHERSQL_LOG_LEVEL", &c.Log.Level)
	str("CYPHERSQL_LOG_FORMAT", &c.Log.Format)
	if err := num("CYPHERSQL_MAX_DEPTH", &c.MaxDepth); err != nil {
		return err
	}
	return num("CYPHERSQL_CACHE_SIZE", &c.CacheSize)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := querysql.ParseDialect(c.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("dialect: %w", err))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth: must not be negative, got %d", c.MaxDepth))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size: must not be negative, got %d", c.CacheSize))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "pgx", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q (want sqlite3 or pgx)", c.Database.Driver))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// TransformOptions returns the translator options the config selects.
// Call after Validate.
func (c *Config) TransformOptions() []transform.Option {
	d, _ := querysql.ParseDialect(c.Dialect)
	return []transform.Option{
		transform.WithDialect(d),
		transform.WithMaxDepth(c.MaxDepth),
		transform.WithCacheSize(c.CacheSize),
	}
}

// ParseLevel maps a level name onto slog. Empty means warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
