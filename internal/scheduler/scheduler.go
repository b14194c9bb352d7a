// Package scheduler is the single cooperative event loop described in
// §4.11: every job is bound to a cron or fixed-interval trigger, and the
// loop supports graceful shutdown on cancellation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"

	"github.com/brightpitch/fixtureflow/internal/platform/logging"
)

// secondsParser matches the teacher's cron.New(cron.WithSeconds()) field
// set: seconds minute hour day-of-month month day-of-week, plus the
// standard descriptors (@hourly, @every 5m, ...).
var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger is either a cron expression or a fixed interval (§4.1
// `interval.type ∈ {cron, interval}`). Exactly one of Cron or Interval
// should be set.
type Trigger struct {
	Cron     string
	Interval time.Duration
}

func (t Trigger) schedule() (cron.Schedule, error) {
	if t.Cron != "" {
		sched, err := secondsParser.Parse(t.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron spec %q: %w", t.Cron, err)
		}
		return sched, nil
	}
	if t.Interval <= 0 {
		return nil, fmt.Errorf("trigger requires either a cron spec or a positive interval")
	}
	return cron.Every(t.Interval), nil
}

// Job is one coroutine bound to a Trigger (§4.11). Run receives a context
// already scoped to Timeout, if set.
type Job struct {
	Name    string
	Trigger Trigger
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// ResultHook is called after every job run, successful or not. Schedulers
// use it to record run telemetry (e.g. into `domain/jobscheduler`) without
// this package depending on any particular sink.
type ResultHook func(jobName string, duration time.Duration, err error)

// Scheduler runs every registered Job on its own trigger inside a single
// robfig/cron loop (§4.11). Concurrency across jobs is bounded only by
// whatever shared resources their Run functions contend on (the Rate
// Governor, the database pool); the scheduler itself imposes no cap.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *logging.Logger
	onRun  ResultHook

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

type Option func(*Scheduler)

// WithResultHook registers a callback invoked after every job run.
func WithResultHook(hook ResultHook) Option {
	return func(s *Scheduler) { s.onRun = hook }
}

func New(logger *logging.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:           cron.New(cron.WithSeconds()),
		logger:         logger,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register binds a job to its trigger. Must be called before Start; the
// underlying cron.Cron does not support removing entries once scheduled.
func (s *Scheduler) Register(job Job) error {
	sched, err := job.Trigger.schedule()
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}
	job := job
	s.cron.Schedule(sched, cron.FuncJob(func() { s.runJob(job) }))
	s.jobs = append(s.jobs, job)
	return nil
}

// runJob executes one job tick. It runs the job on a conc.WaitGroup so a
// panic inside Run surfaces on Wait() instead of crashing the whole
// process the way an unrecovered panic in a bare goroutine would; the
// deferred recover here is what actually stops it from propagating
// further, logging it as a failed run instead.
func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "job", job.Name, "panic", fmt.Sprintf("%v", r))
		}
	}()

	var wg conc.WaitGroup
	var runErr error
	var duration time.Duration

	wg.Go(func() {
		ctx := s.shutdownCtx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		start := time.Now()
		runErr = job.Run(ctx)
		duration = time.Since(start)
	})
	wg.Wait()

	if runErr != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "duration", duration, "error", runErr)
	} else {
		s.logger.Info("scheduled job completed", "job", job.Name, "duration", duration)
	}
	if s.onRun != nil {
		s.onRun(job.Name, duration, runErr)
	}
}

// Start begins firing registered jobs on their triggers.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler starting", "job_count", len(s.jobs))
	s.cron.Start()
}

// Stop requests a graceful shutdown (§4.11, §5): no new jobs fire, every
// in-flight run's context is cancelled so it unblocks at its next
// suspension point (Governor.Acquire, an HTTP call, a DB query), and Stop
// blocks until every in-flight run completes or ctx is cancelled first,
// whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	s.shutdownCancel()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded, in-flight runs may be abandoned")
		return ctx.Err()
	}
}

// RunNow executes a registered job immediately and synchronously,
// bypassing its trigger. Used for manual/backfill runs and in tests.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name != name {
			continue
		}
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}
		return job.Run(ctx)
	}
	return fmt.Errorf("scheduler: no job named %q", name)
}

// Entries exposes the underlying cron entries (next/prev run times),
// mainly for operator diagnostics.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
