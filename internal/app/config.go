package app

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/vk/munge/internal/warehouse"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ManifestPaths []string // hcl files or directories
	// Stages restricts the registry to artifacts of these stages. Empty
	// keeps every stage.
	Stages []string

	Driver        string
	DSN           string
	StagingPrefix string
	Limit         int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

var (
	logFormats = []string{"text", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	cfg.ManifestPaths = lo.Compact(cfg.ManifestPaths)
	if len(cfg.ManifestPaths) == 0 {
		return nil, errors.WithHint(
			errors.New("at least one manifest path is required"),
			"pass --manifest or set MUNGE_MANIFEST",
		)
	}
	cfg.Stages = lo.Uniq(lo.Compact(cfg.Stages))

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, errors.Newf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, errors.Newf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	cfg.Driver = strings.ToLower(cfg.Driver)
	if cfg.Driver == "" {
		cfg.Driver = warehouse.DriverSQLite
	}
	if cfg.Driver != warehouse.DriverSQLite && cfg.Driver != warehouse.DriverPostgres {
		return nil, errors.Newf("invalid driver %q: must be 'sqlite' or 'postgres'", cfg.Driver)
	}
	if cfg.StagingPrefix == "" {
		cfg.StagingPrefix = warehouse.DefaultStagingPrefix
	}
	if cfg.Limit < 0 {
		return nil, errors.Newf("invalid limit %d: must not be negative", cfg.Limit)
	}
	if cfg.HealthcheckPort < 0 {
		return nil, errors.Newf("invalid healthcheck-port %d", cfg.HealthcheckPort)
	}

	return &cfg, nil
}

func (c *Config) warehouseConfig() warehouse.Config {
	return warehouse.Config{
		Driver:        c.Driver,
		DSN:           c.DSN,
		StagingPrefix: c.StagingPrefix,
		Limit:         c.Limit,
	}
}
