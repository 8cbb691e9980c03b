package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/rules"
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// FieldError is a validation failure for one configuration field
type FieldError struct {
	Field   string // dotted YAML path, e.g. "server.port"
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  - %s", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and reports all problems at once
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateTables(&cfg.Tables)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, FieldError{Field: "server.port", Message: fmt.Sprintf("must be a port number between 1 and 65535, got %q", cfg.Port)})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must not be negative"})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{Field: "database.url", Message: "is required (set DATABASE_URL)"})
	}
	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{Field: "database.max_open_conns", Message: "must not be negative"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{Field: "database.max_idle_conns", Message: "must not be negative"})
	}

	return errs
}

func validateTables(cfg *TablesConfig) []FieldError {
	var errs []FieldError

	if _, err := rules.ParseDelimiter(cfg.Delimiter); err != nil {
		errs = append(errs, FieldError{Field: "tables.delimiter", Message: err.Error()})
	} else if cfg.Delimiter == rules.Divider {
		errs = append(errs, FieldError{Field: "tables.delimiter", Message: "cannot be the divider column marker"})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{Field: "tables.cache_ttl", Message: "must not be negative"})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if !metricName.MatchString(cfg.Namespace) {
		errs = append(errs, FieldError{Field: "metrics.namespace", Message: fmt.Sprintf("invalid metric namespace %q", cfg.Namespace)})
	}
	if cfg.Subsystem != "" && !metricName.MatchString(cfg.Subsystem) {
		errs = append(errs, FieldError{Field: "metrics.subsystem", Message: fmt.Sprintf("invalid metric subsystem %q", cfg.Subsystem)})
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{Field: "metrics.path", Message: "must start with /"})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		errs = append(errs, FieldError{Field: "logging.level", Message: err.Error()})
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		errs = append(errs, FieldError{Field: "logging.format", Message: fmt.Sprintf("must be json or text, got %q", cfg.Format)})
	}
	if cfg.SampleRate < 1 {
		errs = append(errs, FieldError{Field: "logging.sample_rate", Message: "must be at least 1"})
	}

	return errs
}
