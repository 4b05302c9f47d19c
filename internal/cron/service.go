package cron

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/jobs"
	"github.com/noah-isme/lostfound-api/pkg/logger"
)

const (
	defaultJobTimeout = 5 * time.Minute
	scheduledJobType  = "cron.run"
)

// Outcomes recorded per run.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// ErrJobRunning is returned by manual runs while another run holds the job's lock.
var ErrJobRunning = appErrors.New("JOB_RUNNING", http.StatusConflict, "job is already running")

var errLockHeld = errors.New("job lock held elsewhere")

type runRecorder interface {
	RecordJobRun(job, outcome string, processed int, duration time.Duration)
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *zap.Logger
	Registry   *Registry
	Locks      LockFactory
	Metrics    runRecorder
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Location   *time.Location
}

// Service fires registered jobs on their cron schedules. Each tick is handed to a
// retrying worker queue; a run executes only while it holds the job's lock.
type Service struct {
	logger   *zap.Logger
	registry *Registry
	locks    LockFactory
	metrics  runRecorder
	timeout  time.Duration

	cron  *robfig.Cron
	queue *jobs.Queue
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	log := params.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	location := params.Location
	if location == nil {
		location = time.UTC
	}

	svc := &Service{
		logger:   log,
		registry: params.Registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		timeout:  timeout,
		cron:     robfig.New(robfig.WithLocation(location)),
	}
	svc.queue = jobs.NewQueue("cron", svc.handle, jobs.QueueConfig{
		Workers:     1,
		BufferSize:  16,
		MaxRetries:  params.MaxRetries,
		RetryDelay:  params.RetryDelay,
		Logger:      log,
		Permanent:   appErrors.IsPermanent,
		OnExhausted: svc.exhausted,
	})
	return svc, nil
}

// Start registers every scheduled entry and begins firing them.
func (s *Service) Start(ctx context.Context) error {
	for _, entry := range s.registry.Entries() {
		if entry.Schedule == "" {
			continue
		}
		name := entry.Job.Name()
		if _, err := s.cron.AddFunc(entry.Schedule, func() { s.Enqueue(name) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, entry.Schedule, err)
		}
		s.logger.Info("job scheduled", zap.String("job", name), zap.String("schedule", entry.Schedule))
	}
	s.queue.Start(ctx)
	s.cron.Start()
	return nil
}

// Stop halts the timers, waits for running timer callbacks and drains the workers.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.queue.Stop()
}

// Enqueue hands a run of the named job to the worker queue.
func (s *Service) Enqueue(name string) {
	if err := s.queue.Enqueue(jobs.Job{ID: name, Type: scheduledJobType, Payload: name}); err != nil {
		logger.ForJob(s.logger, name).Error("failed to enqueue scheduled run", zap.Error(err))
	}
}

// RunNow executes the named job synchronously under its lock.
func (s *Service) RunNow(ctx context.Context, name string) (int, error) {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown job %q", name))
	}
	return s.RunJob(ctx, job)
}

// RunJob executes a one-off job synchronously under the lock of the job it shares a name with.
func (s *Service) RunJob(ctx context.Context, job Job) (int, error) {
	if job == nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "job required")
	}
	processed, err := s.execute(ctx, job)
	if errors.Is(err, errLockHeld) {
		return 0, ErrJobRunning
	}
	return processed, err
}

func (s *Service) handle(ctx context.Context, queued jobs.Job) error {
	name, _ := queued.Payload.(string)
	job, ok := s.registry.Lookup(name)
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("unknown job %q", name))
	}
	_, err := s.execute(ctx, job)
	if errors.Is(err, errLockHeld) {
		return nil
	}
	return err
}

func (s *Service) execute(ctx context.Context, job Job) (int, error) {
	name := job.Name()
	log := logger.ForJob(s.logger, name)

	lock := s.locks(name)
	if lock == nil {
		return 0, fmt.Errorf("no lock available for %s", name)
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		log.Info("another instance holds the lock; skipping this run")
		s.record(name, OutcomeSkipped, 0, 0)
		return 0, errLockHeld
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Warn("failed to release job lock", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info("job start")
	start := time.Now()
	processed, err := job.Run(runCtx)
	duration := time.Since(start)
	if err != nil {
		log.Error("job failed", zap.Int("processed", processed), zap.Duration("duration", duration), zap.Error(err))
		s.record(name, OutcomeFailure, processed, duration)
		return processed, err
	}
	log.Info("job completed", zap.Int("processed", processed), zap.Duration("duration", duration))
	s.record(name, OutcomeSuccess, processed, duration)
	return processed, nil
}

func (s *Service) exhausted(job jobs.Job, err error) {
	name, _ := job.Payload.(string)
	log := logger.ForJob(s.logger, name)
	if appErrors.IsPermanent(err) {
		log.Warn("job cannot succeed; dropping this run", zap.Error(err))
		return
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		log.Error("job gave up after retries", zap.String("code", appErr.Code), zap.Error(err))
		return
	}
	log.Error("job gave up after retries", zap.Error(err))
}

func (s *Service) record(job, outcome string, processed int, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordJobRun(job, outcome, processed, duration)
}
