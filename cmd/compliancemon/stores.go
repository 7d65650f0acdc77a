package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-compliance/internal/audit"
	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/redis"
)

// stores holds the opened persistence layer and the Monitor built over it.
type stores struct {
	db      *database.DB
	redis   *redis.Client
	monitor *compliance.Monitor
	audit   *audit.SQLRepository
}

// openDatabase opens the configured database. Failures are configuration
// errors: the store cannot be reached at all.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", compliance.ErrConfiguration, err)
	}
	return db, nil
}

// openStores opens the database (migrated), the attempt backend and the
// audit repository, and builds a Monitor whose events are audited under
// source.
func openStores(ctx context.Context, cfg *config.Config, log *logging.Logger, source string) (*stores, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &stores{db: db}

	if err := db.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var tracker compliance.AttemptTracker
	switch cfg.Attempts.Backend {
	case config.AttemptsBackendRedis:
		s.redis, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			s.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("%w: connecting to redis: %w", compliance.ErrConfiguration, err)
		}
		tracker = compliance.NewRedisAttemptTracker(s.redis.Client, s.redis.KeyPrefix())
	default:
		tracker = compliance.NewSQLAttemptTracker(db)
	}

	s.monitor = compliance.NewMonitor(
		compliance.NewSQLLedger(db),
		compliance.NewSQLViolationStore(db),
		tracker,
	)
	s.monitor.SetLogger(log)
	s.monitor.SetEscalationThreshold(cfg.Attempts.EscalateAfter)

	s.audit = audit.NewSQLRepository(db)
	s.monitor.AddHandler(audit.NewRecorder(s.audit, source))

	return s, nil
}

// Close releases the attempt backend and the database.
func (s *stores) Close() error {
	var errs []error
	if err := s.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing redis: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}
