package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
	"github.com/cyberops7/garagebot/internal/metrics"
)

// State is the scheduler's global lifecycle state
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// JobFunc is a periodic job handler. It must observe ctx cancellation at
// its suspension points and unwind without partial state mutation.
type JobFunc func(ctx context.Context) error

// job is the scheduler-owned descriptor for one periodic job
type job struct {
	name     string
	interval time.Duration
	run      JobFunc

	mu      sync.Mutex
	state   domain.JobState
	lastRun time.Time
	lastErr string
}

func (j *job) status() domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return domain.JobStatus{
		Name:      j.name,
		Interval:  j.interval,
		State:     j.state,
		LastRun:   j.lastRun,
		LastError: j.lastErr,
	}
}

// Scheduler owns the periodic job table and the gateway subscription. It
// is the only place tasks are started, stopped, or cancelled. A failed
// run never unschedules a job; isolation between jobs is absolute.
type Scheduler struct {
	gateway repo.Gateway
	log     *slog.Logger

	mu     sync.Mutex
	state  State
	jobs   []*job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler
func NewScheduler(gateway repo.Gateway, log *slog.Logger) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		log:     log.With("component", "scheduler"),
		state:   StateStopped,
	}
}

// RegisterJob adds a periodic job to the table. Only valid before the
// scheduler is running; afterwards it returns domain.ErrInvalidState.
func (s *Scheduler) RegisterJob(name string, interval time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped && s.state != StateStarting {
		return fmt.Errorf("register job %q in state %s: %w", name, s.state, domain.ErrInvalidState)
	}
	if interval <= 0 {
		return fmt.Errorf("register job %q: interval must be positive: %w", name, domain.ErrInvalidState)
	}
	s.jobs = append(s.jobs, &job{
		name:     name,
		interval: interval,
		run:      fn,
		state:    domain.JobIdle,
	})
	return nil
}

// Start opens the gateway subscription and launches every registered job
// loop. A gateway authentication failure surfaces as domain.FatalError.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("start in state %s: %w", s.state, domain.ErrInvalidState)
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.gateway.Connect(ctx); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.jobLoop(runCtx, j)
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Info("scheduler running", "jobs", len(s.jobs))
	return nil
}

// Stop signals every task to cancel, waits up to the grace period, then
// releases the gateway connection. In-flight jobs observe cancellation at
// their next checkpoint; they are never forcibly killed.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("stop grace period elapsed before all jobs finished", "timeout", timeout)
	}

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), timeout)
	defer cancelDisconnect()
	if err := s.gateway.Disconnect(disconnectCtx); err != nil {
		s.log.Warn("gateway disconnect error", "error", err)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.log.Info("scheduler stopped")
}

// State returns the global lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy reports whether the scheduler is running and the gateway
// connection is alive
func (s *Scheduler) Healthy() bool {
	return s.State() == StateRunning && s.gateway.Alive()
}

// Status returns a read-only view of every job
func (s *Scheduler) Status() []domain.JobStatus {
	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	out := make([]domain.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.status())
	}
	return out
}

// jobLoop runs a job immediately, then on every tick, until cancelled
func (s *Scheduler) jobLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	s.runJob(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

// runJob executes one job run, converting handler errors and panics into
// a Failed state transition. The job stays scheduled either way.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		return
	}

	j.mu.Lock()
	j.state = domain.JobRunning
	j.mu.Unlock()

	err := s.safeRun(ctx, j)

	j.mu.Lock()
	j.lastRun = time.Now()
	if err != nil && ctx.Err() == nil {
		j.state = domain.JobFailed
		j.lastErr = err.Error()
	} else {
		j.state = domain.JobIdle
		j.lastErr = ""
	}
	j.mu.Unlock()

	switch {
	case err != nil && ctx.Err() != nil:
		s.log.Info("job cancelled", "job", j.name)
		metrics.JobRuns.WithLabelValues(j.name, "cancelled").Inc()
	case err != nil:
		s.log.Error("job failed", "job", j.name, "error", err)
		metrics.JobRuns.WithLabelValues(j.name, "failed").Inc()
	default:
		metrics.JobRuns.WithLabelValues(j.name, "ok").Inc()
	}
}

// safeRun isolates the handler: a panic is recovered here and reported as
// an error instead of crashing the process
func (s *Scheduler) safeRun(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job %q panicked: %v", j.name, r)
		}
	}()
	return j.run(ctx)
}
