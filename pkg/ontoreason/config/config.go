package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/ontoreason/pkg/ontoreason/inference"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
)

// Journal drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Environment variables that override file values.
const (
	EnvOntology   = "ONTOREASON_ONTOLOGY"
	EnvLogLevel   = "ONTOREASON_LOG_LEVEL"
	EnvHTTPAddr   = "ONTOREASON_HTTP_ADDR"
	EnvJournalDSN = "ONTOREASON_JOURNAL_DSN"
)

// Config is the service configuration.
type Config struct {
	Ontology  OntologyConfig  `yaml:"ontology"`
	Inference InferenceConfig `yaml:"inference"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Journal   JournalConfig   `yaml:"journal"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// OntologyConfig selects the ontology definition. An empty path uses the
// embedded default.
type OntologyConfig struct {
	Path string `yaml:"path"`
}

// InferenceConfig bounds the inference engine.
type InferenceConfig struct {
	MaxPasses int `yaml:"max_passes"`
}

// EnrichConfig tunes the enrichment service.
type EnrichConfig struct {
	Workers int  `yaml:"workers"`
	Check   bool `yaml:"check"`
}

// JournalConfig selects where enrichment results are recorded.
type JournalConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Prefix    string `yaml:"prefix"`
	Retention int    `yaml:"retention"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxConnections int           `yaml:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxBatch       int           `yaml:"max_batch"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{MaxPasses: inference.DefaultMaxPasses},
		Enrich:    EnrichConfig{Workers: 8},
		Journal:   JournalConfig{Driver: DriverMemory, Retention: 1000},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxConnections: 256,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxBatch:       100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML config over the defaults. Missing keys keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w: %w", path, internalerr.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// getenv. A nil getenv uses os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvOntology); v != "" {
		c.Ontology.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvHTTPAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvJournalDSN); v != "" {
		c.SetJournalDSN(v)
	}
}

// SetJournalDSN points the journal at dsn. A memory or disabled journal
// switches to the driver the DSN implies; an explicit driver is kept.
func (c *Config) SetJournalDSN(dsn string) {
	c.Journal.DSN = dsn
	if c.Journal.Driver == DriverMemory || c.Journal.Driver == DriverNone || c.Journal.Driver == "" {
		c.Journal.Driver = driverFromDSN(dsn)
	}
}

func driverFromDSN(dsn string) string {
	if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
		return DriverRedis
	}
	return DriverSQLite
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Inference.MaxPasses <= 0 {
		bad("inference.max_passes must be positive, got %d", c.Inference.MaxPasses)
	}
	if c.Enrich.Workers <= 0 {
		bad("enrich.workers must be positive, got %d", c.Enrich.Workers)
	}
	switch c.Journal.Driver {
	case DriverNone, DriverMemory:
	case DriverSQLite, DriverRedis:
		if c.Journal.DSN == "" {
			bad("journal.dsn is required for driver %q", c.Journal.Driver)
		}
	default:
		bad("journal.driver %q is not one of none, memory, sqlite, redis", c.Journal.Driver)
	}
	if c.Journal.Retention < 0 {
		bad("journal.retention must not be negative, got %d", c.Journal.Retention)
	}
	if c.Server.MaxConnections < 0 {
		bad("server.max_connections must not be negative, got %d", c.Server.MaxConnections)
	}
	if c.Server.MaxBatch <= 0 {
		bad("server.max_batch must be positive, got %d", c.Server.MaxBatch)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		bad("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, errors.Join(errs...))
}
