package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-compliance/internal/audit"
	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ComplianceReader is the query side of the Monitor.
type ComplianceReader interface {
	GetCompliance(ctx context.Context, deviceID int64) (*compliance.Record, error)
	GetCurrent(ctx context.Context, deviceID, policyID int64) (*compliance.Record, error)
	History(ctx context.Context, deviceID int64, limit int) ([]compliance.Record, error)
	Summary(ctx context.Context) (compliance.Summary, error)
	GetViolations(ctx context.Context, recordID int64) ([]compliance.FeatureViolation, error)
	AttemptCounter(ctx context.Context, deviceID int64) (compliance.AttemptCounter, error)
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Monitor  ComplianceReader
	Audit    audit.Repository    // optional
	Gatherer prometheus.Gatherer // optional, defaults to prometheus.DefaultGatherer
	Checks   map[string]HealthChecker
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	monitor  ComplianceReader
	audit    audit.Repository
	gatherer prometheus.Gatherer
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("compliance monitor is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		monitor:  deps.Monitor,
		audit:    deps.Audit,
		gatherer: gatherer,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to 10 seconds for in-flight requests, then closes
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
