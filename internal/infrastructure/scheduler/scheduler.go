// Package scheduler runs periodic background jobs of the tracker on cron
// schedules (robfig/cron). Runs of the same job never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alem-hub/student-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of periodic work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Description returns a human-readable description of the job.
	Description() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// JobResult describes one execution of a job.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

var (
	ErrNilJob           = errors.New("scheduler: job is nil")
	ErrJobAlreadyExists = errors.New("scheduler: job already registered")
	ErrJobNotFound      = errors.New("scheduler: job not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config holds scheduler settings.
type Config struct {
	Logger *logger.Logger

	// Location for schedule calculations. Defaults to UTC.
	Location *time.Location

	// JobTimeout bounds a single run. Zero means no bound beyond Stop.
	JobTimeout time.Duration
}

// Scheduler wraps a cron runner with logging and per-job results.
type Scheduler struct {
	cron       *cron.Cron
	log        *logger.Logger
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	jobs     map[string]registeredJob
	lastRuns map[string]JobResult
	running  bool
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	spec    string
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	log := cfg.Logger.With(logger.Component("scheduler"))
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:        log,
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]registeredJob),
		lastRuns:   make(map[string]JobResult),
	}
}

// Register schedules job on a standard five-field cron spec or a descriptor
// such as "@daily" or "@every 1h".
func (s *Scheduler) Register(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs[name] = registeredJob{job: job, entryID: id, spec: spec}

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("description", job.Description()),
		logger.String("schedule", spec),
	)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
}

// Stop prevents new runs, cancels running ones and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) (JobResult, error) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(rj.job), nil
}

// NextRun returns the next scheduled time of a job; zero before Start.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(rj.entryID).Next, true
}

// LastRun returns the result of the latest execution of a job.
func (s *Scheduler) LastRun(name string) (JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.lastRuns[name]
	return r, ok
}

func (s *Scheduler) execute(job Job) JobResult {
	ctx := s.ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	result := JobResult{JobName: job.Name(), StartedAt: time.Now()}
	err := job.Run(ctx)
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	result.Success = err == nil
	result.Error = err

	if err != nil {
		s.log.Error("job failed",
			logger.String("job", result.JobName),
			logger.Latency(result.Duration),
			logger.Err(err),
		)
	} else {
		s.log.Info("job completed",
			logger.String("job", result.JobName),
			logger.Latency(result.Duration),
		)
	}

	s.mu.Lock()
	s.lastRuns[result.JobName] = result
	s.mu.Unlock()
	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// cron.Logger adapter
// ─────────────────────────────────────────────────────────────────────────────

type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(kvFields(keysAndValues), logger.Err(err))...)
}

func kvFields(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
