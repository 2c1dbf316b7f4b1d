package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

// Configuration keys.
const (
	KeyDatabasePath    = "database.path"
	KeyReviewThreshold = "review.threshold"
	KeyHeuristicTables = "heuristics.tables"
	KeyParallel        = "extraction.parallel"
	KeyMetricsAddr     = "metrics.addr"
	KeyLogLevel        = "logging.level"
	KeyLogFormat       = "logging.format"
)

// Config is the resolved runtime configuration.
type Config struct {
	DatabasePath    string
	HeuristicTables string
	MetricsAddr     string
	LogLevel        string
	LogFormat       string
	ReviewThreshold float64
	Parallel        int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyReviewThreshold, model.DefaultReviewThreshold)
	v.SetDefault(KeyParallel, runtime.NumCPU())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads and validates the configuration held by v. A missing database
// path falls back to DefaultDatabasePath.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		DatabasePath:    ExpandPath(v.GetString(KeyDatabasePath)),
		HeuristicTables: ExpandPath(v.GetString(KeyHeuristicTables)),
		MetricsAddr:     v.GetString(KeyMetricsAddr),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		ReviewThreshold: v.GetFloat64(KeyReviewThreshold),
		Parallel:        v.GetInt(KeyParallel),
	}

	if cfg.DatabasePath == "" {
		path, err := DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DatabasePath = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("%w: %s must be within [0,1], got %g", common.ErrInvalidConfig, KeyReviewThreshold, c.ReviewThreshold)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("%w: %s must be at least 1, got %d", common.ErrInvalidConfig, KeyParallel, c.Parallel)
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// LoadTables returns the heuristic tables, applying the configured override
// file when one is set.
func (c *Config) LoadTables() (heuristics.Tables, error) {
	if c.HeuristicTables == "" {
		return heuristics.Defaults(), nil
	}
	tables, err := heuristics.Load(c.HeuristicTables)
	if err != nil {
		return heuristics.Tables{}, fmt.Errorf("%s: %w", c.HeuristicTables, err)
	}
	return tables, nil
}
