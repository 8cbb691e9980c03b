package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/liamcoop/decisiontables/internal/config"
	"github.com/liamcoop/decisiontables/internal/logger"
	"github.com/liamcoop/decisiontables/internal/metrics"
	"github.com/liamcoop/decisiontables/multitenantengine"
)

type Server struct {
	db            *sql.DB
	cfg           *config.Config
	engineManager *multitenantengine.MultiTenantEngineManager
	metrics       *metrics.Collector
	router        *chi.Mux
}

// NewServer connects to the configured database and loads every tenant
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewServerWithDB(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithDB builds a server around an open database. A nil db runs
// the server without persistence; pass a store factory in opts to keep tables.
func NewServerWithDB(db *sql.DB, cfg *config.Config, opts ...multitenantengine.ManagerOption) (*Server, error) {
	opts = append([]multitenantengine.ManagerOption{
		multitenantengine.WithCacheTTL(cfg.Tables.CacheTTL),
	}, opts...)
	engineManager := multitenantengine.NewMultiTenantEngineManager(db, opts...)

	logger.Info("loading tenants from database")
	if err := engineManager.LoadAllTenants(); err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}

	s := &Server{
		db:            db,
		cfg:           cfg,
		engineManager: engineManager,
		metrics:       metrics.NewCollector(cfg.Metrics, nil),
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.RequestSize(s.cfg.Server.MaxBodyBytes))

	r.Get("/api/v1/health", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	r.Post("/api/v1/evaluate", s.handleEvaluate)

	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}", func(r chi.Router) {
			r.Post("/schema", s.handleUpdateSchema)
			r.Get("/schema", s.handleGetSchema)

			r.Post("/tables", s.handleCreateTable)
			r.Get("/tables", s.handleListTables)
			r.Get("/tables/{tableId}", s.handleGetTable)
			r.Put("/tables/{tableId}", s.handleUpdateTable)
			r.Delete("/tables/{tableId}", s.handleDeleteTable)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request and feeds the HTTP counters
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RecordRequest(r.Method, route, status)

		switch {
		case status >= 500:
			logger.ErrorHttp5xx()
		case status >= 400:
			logger.WarnHttp4xx(status)
		}

		logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	if status >= 500 {
		logger.Error(message, "error", err)
	}
	respondJSON(w, status, response)
}

func main() {
	configPath := flag.String("config", os.Getenv("DT_CONFIG"), "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	level, _ := logger.ParseLevel(cfg.Logging.Level)
	opts := logger.OptionsFromEnv()
	opts.Level = level
	opts.Format = cfg.Logging.Format
	opts.SampleRate = cfg.Logging.SampleRate
	if err := logger.Setup(opts); err != nil {
		logger.Warn("OpenTelemetry logging unavailable, using JSON", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.db.Close()

	logger.Info("tenants loaded", "tenants", server.engineManager.ListTenants())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown error: %v\n", err)
	}

	logger.Info("server stopped")
}
