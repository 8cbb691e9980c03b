package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

// Options selects the handler and sampling behaviour
type Options struct {
	Level       slog.Level
	Format      string // "json" or "text"
	SampleRate  int    // log 1 of every SampleRate warnings and errors
	OTel        bool   // export through OTLP instead of writing to Output
	ServiceName string
	Output      io.Writer
}

var (
	Logger       *slog.Logger
	sampleRate   atomic.Int32
	programLevel = new(slog.LevelVar)
	shutdownFunc func(context.Context) error
)

func init() {
	if err := Setup(OptionsFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed, falling back to JSON: %v\n", err)
	}
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT, ERROR_SAMPLE_RATE,
// OTEL_ENABLED and OTEL_SERVICE_NAME
func OptionsFromEnv() Options {
	opts := Options{
		Level:       LevelInfo,
		Format:      strings.ToLower(os.Getenv("LOG_FORMAT")),
		SampleRate:  1,
		OTel:        strings.ToLower(os.Getenv("OTEL_ENABLED")) == "true",
		ServiceName: os.Getenv("OTEL_SERVICE_NAME"),
		Output:      os.Stdout,
	}

	if level, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		opts.Level = level
	}

	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil && rate > 0 {
		opts.SampleRate = rate
	}

	if opts.ServiceName == "" {
		opts.ServiceName = "decisiontables"
	}

	return opts
}

// Setup replaces the package logger. When OTel export cannot be set up
// a JSON handler is installed and the error is returned.
func Setup(opts Options) error {
	programLevel.Set(opts.Level)
	SetSampleRate(opts.SampleRate)

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	if opts.OTel {
		shutdown, err := setupOTELLogging(context.Background(), opts.ServiceName)
		if err == nil {
			shutdownFunc = shutdown
			return nil
		}
		install(slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{Level: programLevel}))
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: programLevel}
	if opts.Format == "text" {
		install(slog.NewTextHandler(opts.Output, handlerOpts))
	} else {
		install(slog.NewJSONHandler(opts.Output, handlerOpts))
	}
	return nil
}

func install(h slog.Handler) {
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

// setupOTELLogging bridges slog records to an OTLP gRPC log exporter
func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	install(&levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	})

	return provider.Shutdown, nil
}

// levelHandler adds level filtering to handlers that lack it
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTel exporter, if one is installed
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// SetSampleRate logs 1 of every rate warnings and errors; rate <= 1 logs all
func SetSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	sampleRate.Store(int32(rate))
}

// ParseLevel converts a level name to slog.Level. The empty string is INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs a trace-level message
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug-level message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info-level message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every warning but only logs a sample
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every error but only logs a sample
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs and exits with status 1
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}
