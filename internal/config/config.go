// Package config loads service configuration from YAML with environment
// overrides.
package config

import "time"

// Config is the root configuration for the decision table service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Tables   TablesConfig   `yaml:"tables"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DatabaseConfig configures the PostgreSQL connection
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

// TablesConfig holds defaults for table parsing and the active-list cache
type TablesConfig struct {
	// Delimiter is used for tables stored without one
	Delimiter string        `yaml:"delimiter"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
	Path      string `yaml:"path"`
}

// LoggingConfig mirrors the logger options
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	SampleRate int    `yaml:"sample_rate"`
}
