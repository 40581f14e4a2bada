// Package bootstrap assembles run configuration and logging for the loader.
// All configuration is explicit and threaded into components at
// construction time; nothing here is process-wide mutable state.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fitsearch/pipeline/pkg/delivery"
	"github.com/fitsearch/pipeline/pkg/domain/zones"
	"github.com/fitsearch/pipeline/pkg/health"
)

// Duration wraps time.Duration so YAML configs can use "5s" style values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the full run configuration.
type Config struct {
	// Store / delivery.
	ESHost         string   `yaml:"es_host"`
	Index          string   `yaml:"index"`
	ChunkSize      int      `yaml:"chunk_size"`
	MaxRetries     int      `yaml:"max_retries"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	SkipCreate     bool     `yaml:"skip_create"`
	SkipRestore    bool     `yaml:"skip_restore"`

	// Analytics.
	FTP        float64     `yaml:"ftp"`
	HRZones    zones.Table `yaml:"hr_zones"`
	PowerZones zones.Table `yaml:"power_zones"`

	// Enrichment. HealthExport empty means enrichment disabled.
	HealthExport string            `yaml:"health_export"`
	Recovery     health.Thresholds `yaml:"recovery"`

	// Run shape.
	DataDir     string `yaml:"data_dir"`
	FailureLog  string `yaml:"failure_log"`
	Parallelism int    `yaml:"parallelism"`
}

// LoadConfig returns the default configuration with environment overrides
// applied (ES_HOST, LOG_LEVEL is read separately by NewLogger).
func LoadConfig() *Config {
	cfg := &Config{
		ESHost:         "http://localhost:9200",
		Index:          "fit-data",
		ChunkSize:      delivery.DefaultChunkSize,
		MaxRetries:     delivery.DefaultMaxRetries,
		InitialBackoff: Duration(delivery.DefaultInitialBackoff),
		MaxBackoff:     Duration(delivery.DefaultMaxBackoff),
		FTP:            210,
		HRZones:        zones.DefaultHeartRate(),
		PowerZones:     zones.DefaultPower(),
		Recovery:       health.DefaultThresholds(),
		FailureLog:     "es_bulk_failures.log",
		Parallelism:    4,
	}
	if host := os.Getenv("ES_HOST"); host != "" {
		cfg.ESHost = host
	}
	return cfg
}

// ApplyFile overlays settings from a YAML file. Only keys present in the
// file are touched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Index == "" {
		return fmt.Errorf("index name is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

// DeliveryOptions maps the config onto the delivery engine's options.
func (c *Config) DeliveryOptions() delivery.Options {
	return delivery.Options{
		Index:          c.Index,
		ChunkSize:      c.ChunkSize,
		MaxRetries:     c.MaxRetries,
		InitialBackoff: time.Duration(c.InitialBackoff),
		MaxBackoff:     time.Duration(c.MaxBackoff),
	}
}

// NewLogger creates a JSON structured logger tagged with the service name.
// Level comes from LOG_LEVEL (debug/info/warn/error), defaulting to info.
func NewLogger(serviceName string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", serviceName)
}
