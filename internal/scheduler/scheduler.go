// Package scheduler runs the periodic jobs: each job has its own trigger,
// can be fired by hand, and never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/metrics"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrDuplicateJob   = errors.New("job already registered")
	ErrTriggerPending = errors.New("a manual run is already queued")
	ErrAlreadyRunning = errors.New("job is already running")
	ErrStarted        = errors.New("scheduler already started")
)

// Guard is the failure boundary every run goes through.
type Guard interface {
	Guard(ctx context.Context, job string, fn func(context.Context) error) error
}

// stopTimeout bounds how long Stop waits for in-flight runs.
const stopTimeout = time.Minute

// Job is one named unit of periodic work.
type Job struct {
	Name       string
	Trigger    Trigger
	RunOnStart bool // run once, synchronously, inside Start
	Run        func(ctx context.Context) error
}

// Status is a snapshot of one job.
type Status struct {
	Name        string    `json:"name"`
	Trigger     string    `json:"trigger"`
	Running     bool      `json:"running"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	Skipped     int       `json:"skipped"`
}

type entry struct {
	job     Job
	running sync.Mutex  // held for the whole run
	pending atomic.Bool // a manual run is queued and has not started

	mu     sync.RWMutex
	status Status
	cron   gocron.Job // nil until Start
}

func (e *entry) update(fn func(*Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.status)
}

func (e *entry) snapshot() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *entry) cronJob() gocron.Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cron
}

// reason labels a run fired by gocron and consumes a queued manual trigger.
func (e *entry) reason() string {
	if e.pending.Swap(false) {
		return "manual"
	}
	return "schedule"
}

// Scheduler owns the registered jobs. gocron decides when they fire; status
// bookkeeping and the failure boundary stay here.
type Scheduler struct {
	guard  Guard
	logger logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry
	started bool
	cron    gocron.Scheduler
}

// New returns a Scheduler whose runs all go through guard.
func New(guard Guard, log logger.Logger) *Scheduler {
	return &Scheduler{
		guard:  guard,
		logger: log,
		now:    time.Now,
		byName: make(map[string]*entry),
	}
}

// Add registers a job. Jobs are started, and run on start, in the order added.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrStarted
	}
	if _, ok := s.byName[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	if job.Trigger == nil || job.Run == nil {
		return fmt.Errorf("job %s needs a trigger and a run function", job.Name)
	}

	e := &entry{
		job:    job,
		status: Status{Name: job.Name, Trigger: job.Trigger.String()},
	}
	s.entries = append(s.entries, e)
	s.byName[job.Name] = e
	return nil
}

// Start runs the RunOnStart jobs once, then hands every job to gocron.
// Runs use ctx, so cancelling it aborts in-flight work.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	cron, err := gocron.NewScheduler(
		gocron.WithLogger(cronLogger{log: s.logger}),
		gocron.WithStopTimeout(stopTimeout),
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.started = true
	s.cron = cron
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		if e.job.RunOnStart {
			s.logger.Info("running job on start", logger.String("job", e.job.Name))
			_ = s.run(ctx, e, "start")
		}
	}

	for _, e := range entries {
		cj, err := cron.NewJob(
			e.job.Trigger.Definition(),
			gocron.NewTask(func() {
				defer e.pending.Store(false)
				_ = s.run(ctx, e, e.reason())
			}),
			gocron.WithName(e.job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = cron.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", e.job.Name, err)
		}
		e.mu.Lock()
		e.cron = cj
		e.mu.Unlock()

		s.logger.Info("job scheduled",
			logger.String("job", e.job.Name),
			logger.String("trigger", e.job.Trigger.String()))
	}
	cron.Start()

	// Triggers queued before Start.
	for _, e := range entries {
		if !e.pending.Load() {
			continue
		}
		if err := e.cronJob().RunNow(); err != nil {
			e.pending.Store(false)
			s.logger.Warn("failed to run queued trigger", logger.String("job", e.job.Name), logger.Error(err))
		}
	}
	return nil
}

// Stop shuts gocron down and waits, up to stopTimeout, for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cron != nil {
		if err := cron.Shutdown(); err != nil {
			s.logger.Warn("scheduler did not stop cleanly", logger.Error(err))
		}
	}
	s.logger.Info("scheduler stopped")
}

// Trigger queues a manual run of name. Before Start the run waits for Start;
// afterwards gocron runs it right away.
func (s *Scheduler) Trigger(name string) error {
	e, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if e.snapshot().Running {
		return ErrAlreadyRunning
	}
	if !e.pending.CompareAndSwap(false, true) {
		return ErrTriggerPending
	}

	cj := e.cronJob()
	if cj == nil {
		return nil
	}
	if err := cj.RunNow(); err != nil {
		e.pending.Store(false)
		return fmt.Errorf("failed to trigger %s: %w", name, err)
	}
	return nil
}

// RunNow runs name synchronously on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	e, ok := s.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e, "manual")
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.job.Name)
	}
	return names
}

// Status returns a snapshot of every job in registration order.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		st := e.snapshot()
		if cj := e.cronJob(); cj != nil {
			if next, err := cj.NextRun(); err == nil {
				st.NextRun = next
			}
		}
		out = append(out, st)
	}
	return out
}

func (s *Scheduler) lookup(name string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byName[name]
	return e, ok
}

func (s *Scheduler) run(ctx context.Context, e *entry, reason string) error {
	name := e.job.Name
	log := s.logger.With(logger.String("job", name), logger.String("reason", reason))
	if !e.running.TryLock() {
		log.Warn("job still running, skipping trigger")
		metrics.JobRunsTotal.WithLabelValues(name, "skipped").Inc()
		e.update(func(st *Status) { st.Skipped++ })
		return ErrAlreadyRunning
	}
	defer e.running.Unlock()

	start := s.now()
	e.update(func(st *Status) {
		st.Running = true
		st.LastRun = start
	})
	log.Info("job started")

	err := s.guard.Guard(ctx, name, e.job.Run)

	took := s.now().Sub(start)
	metrics.JobDuration.WithLabelValues(name).Observe(took.Seconds())
	e.update(func(st *Status) {
		st.Running = false
		st.Runs++
		if err != nil {
			st.Failures++
			st.LastError = err.Error()
			return
		}
		st.LastSuccess = start
		st.LastError = ""
	})

	if err != nil {
		metrics.JobRunsTotal.WithLabelValues(name, "failure").Inc()
		return err
	}
	metrics.JobRunsTotal.WithLabelValues(name, "success").Inc()
	metrics.JobLastSuccess.WithLabelValues(name).SetToCurrentTime()
	log.Info("job finished", logger.Duration("took", took))
	return nil
}
