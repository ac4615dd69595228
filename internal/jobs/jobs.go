// Package jobs runs the periodic entry points on a cron schedule. Every run
// holds a named lease so overlapping runs, in this process or another, are
// skipped rather than executed twice.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/villaclean/bookingcore/internal/lock"
	"github.com/villaclean/bookingcore/internal/logging"
)

// Func is a job body. now is the instant the run started.
type Func func(ctx context.Context, now time.Time) error

// Job is a named periodic task.
type Job struct {
	Name string
	// Spec is a robfig/cron expression, e.g. "@every 10m" or "0 3 * * *".
	Spec string
	// Timeout bounds a single run and the lease TTL.
	Timeout time.Duration
	Run     Func
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	locker lock.Locker
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
	base   context.Context
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates cron specs in loc.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithLocation(loc))
		}
	}
}

// WithClock overrides the time passed to job bodies.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a scheduler. locker and tracer are required.
func New(locker lock.Locker, tracer trace.Tracer, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(),
		locker: locker,
		tracer: tracer,
		logger: logger.With("component", "jobs"),
		now:    time.Now,
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds job to the schedule.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("jobs: name and run function are required")
	}
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.RunOnce(s.base, job) }); err != nil {
		return fmt.Errorf("jobs: schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.logger.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// RunOnce executes job immediately under its lease. A held lease is not an
// error: the run is skipped and nil returned.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "job "+job.Name, trace.WithAttributes(attribute.String("job.name", job.Name)))
	defer span.End()

	logger := s.logger.With("job", job.Name)
	ctx = logging.ContextWithLogger(ctx, logger)

	lease, err := s.locker.Acquire(ctx, job.Name, timeout)
	if errors.Is(err, lock.ErrHeld) {
		span.SetAttributes(attribute.Bool("job.skipped", true))
		logger.Info("job skipped, lease held elsewhere")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire lease")
		logger.Error("job lease failed", "error", err)
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("job lease release failed", "error", err)
		}
	}()

	started := s.now()
	err = job.Run(ctx, started)
	duration := s.now().Sub(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("job failed", "duration", duration, "error", err)
		return err
	}
	logger.Info("job completed", "duration", duration)
	return nil
}

// Start begins dispatching scheduled runs. Runs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.base = ctx
	s.cron.Start()
}

// Stop prevents new runs and returns a context that is done once in-flight
// runs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
