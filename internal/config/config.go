// Package config handles loading and parsing application configuration.
// It supports two sources (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Every value read from the YAML file can be overridden by the
// environment variable named in its env:"..." tag, which is how remote
// credentials are supplied in production.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Driver names accepted in the drafts and persistence sections.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverRest     = "rest"
)

// Config is the root configuration structure.
//
// env-required:"true" means the app refuses to start if that value is
// missing.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// StoragePath is the SQLite file used by the sqlite drivers.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"storage/registration.db"`

	// Deadline closes the form, RFC 3339 with an explicit offset.
	Deadline string `yaml:"deadline" env:"REGISTRATION_DEADLINE" env-default:"2025-10-05T23:59:59+02:00"`

	// SessionTTL is how long an idle wizard session stays in memory. The
	// draft outlives it; an expired session is rebuilt from the draft.
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"2h"`

	HTTPServer  `yaml:"http_server"`
	Drafts      Drafts      `yaml:"drafts"`
	Persistence Persistence `yaml:"persistence"`
	Postgres    Postgres    `yaml:"postgres"`
	Rest        Rest        `yaml:"rest"`
	Redis       Redis       `yaml:"redis"`
	Chat        Chat        `yaml:"chat"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
}

// Drafts selects the draft store backend: memory, sqlite or redis.
type Drafts struct {
	Driver string `yaml:"driver" env:"DRAFTS_DRIVER" env-default:"sqlite"`
}

// Persistence selects where confirmed applications go: sqlite (local),
// postgres or rest.
type Persistence struct {
	Driver  string        `yaml:"driver" env:"PERSISTENCE_DRIVER" env-default:"sqlite"`
	Timeout time.Duration `yaml:"timeout" env:"PERSISTENCE_TIMEOUT" env-default:"15s"`
}

// Postgres configures the lib/pq caller.
type Postgres struct {
	DSN     string `yaml:"dsn" env:"DATABASE_URL"`
	Migrate bool   `yaml:"migrate" env:"DATABASE_MIGRATE" env-default:"false"`
}

// Rest configures the hosted RPC endpoint.
type Rest struct {
	URL    string `yaml:"url" env:"SUPABASE_URL"`
	APIKey string `yaml:"api_key" env:"SUPABASE_ANON_KEY"`
}

// Redis configures the redis draft backend.
type Redis struct {
	URL         string        `yaml:"url" env:"REDIS_URL"`
	PoolSize    int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
}

// Chat configures the assistant pass-through.
type Chat struct {
	BaseURL string        `yaml:"base_url" env:"CHAT_BASE_URL" env-default:"https://ai.hackclub.com"`
	Model   string        `yaml:"model" env:"CHAT_MODEL"`
	APIKey  string        `yaml:"api_key" env:"CHAT_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"CHAT_TIMEOUT" env-default:"30s"`
}

// DeadlineTime parses Deadline.
func (c *Config) DeadlineTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Deadline)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q: %w", c.Deadline, err)
	}
	return t, nil
}

// Validate checks the cross-field rules cleanenv cannot express.
func (c *Config) Validate() error {
	if _, err := c.DeadlineTime(); err != nil {
		return err
	}

	switch c.Drafts.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("drafts driver %q needs redis.url", c.Drafts.Driver)
		}
	default:
		return fmt.Errorf("unknown drafts driver %q", c.Drafts.Driver)
	}

	switch c.Persistence.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("persistence driver %q needs postgres.dsn", c.Persistence.Driver)
		}
	case DriverRest:
		if c.Rest.URL == "" || c.Rest.APIKey == "" {
			return fmt.Errorf("persistence driver %q needs rest.url and rest.api_key", c.Persistence.Driver)
		}
	default:
		return fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver)
	}
	return nil
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// cleanenv.ReadConfig reads the YAML file, applies env overrides and
	// defaults, and enforces env-required:"true".
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MustLoad locates, reads and validates the application config, and
// exits the process if anything is wrong.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}
