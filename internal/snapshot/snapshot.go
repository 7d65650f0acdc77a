// Package snapshot periodically publishes the fleet compliance summary.
//
// On each cron tick the Job reads Ledger.Summary (current record per device
// and policy) and hands it to every Sink: the Prometheus gauges and the
// InfluxDB compliance_summary measurement.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// SummaryReader is satisfied by *compliance.Monitor and compliance.Ledger.
type SummaryReader interface {
	Summary(ctx context.Context) (compliance.Summary, error)
}

// Sink receives each summary.
type Sink interface {
	ObserveSummary(s compliance.Summary, at time.Time)
}

// Logger defines the logging interface used by the Job.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Job runs summary snapshots on a cron schedule.
type Job struct {
	reader SummaryReader
	sinks  []Sink
	cron   *cron.Cron
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Job for schedule, which accepts standard five-field cron
// expressions and descriptors such as "@every 5m" or "@hourly".
func New(reader SummaryReader, schedule string, sinks ...Sink) (*Job, error) {
	j := &Job{
		reader: reader,
		sinks:  sinks,
		logger: noopLogger{},
		now:    time.Now,
		ctx:    context.Background(),
	}

	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return nil, fmt.Errorf("parsing snapshot schedule %q: %w", schedule, err)
	}
	return j, nil
}

// SetLogger sets the logger for the job.
func (j *Job) SetLogger(logger Logger) {
	j.logger = logger
}

// Run takes one snapshot now.
func (j *Job) Run(ctx context.Context) (compliance.Summary, error) {
	s, err := j.reader.Summary(ctx)
	if err != nil {
		return s, fmt.Errorf("reading compliance summary: %w", err)
	}

	at := j.now()
	for _, sink := range j.sinks {
		sink.ObserveSummary(s, at)
	}
	return s, nil
}

// Start runs the schedule in the background until Stop or until ctx is
// cancelled. An initial snapshot is taken immediately.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	j.tick()
	j.cron.Start()
}

// Stop halts the schedule and waits for a running snapshot to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()

	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	j.mu.Unlock()
}

func (j *Job) tick() {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	s, err := j.Run(ctx)
	if err != nil {
		j.logger.Warn("compliance snapshot failed", "error", err)
		return
	}
	j.logger.Debug("compliance snapshot",
		"compliant", s.Compliant,
		"non_compliant", s.NonCompliant,
	)
}
