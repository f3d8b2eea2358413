// Package scheduler runs background jobs on cron or interval schedules.
// The worker uses it to refresh tracked groups from the feed.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOBS AND SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of background work.
type Job interface {
	Name() string
	Description() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// Schedule decides when a job is due.
type Schedule interface {
	// Next returns the first activation after t, or the zero time if the
	// schedule never fires again.
	Next(t time.Time) time.Time
	String() string
}

// Outcome describes one finished run.
type Outcome struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Manual   bool
	Err      error
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

var (
	ErrNilJob         = errors.New("scheduler: nil job")
	ErrNilSchedule    = errors.New("scheduler: nil schedule")
	ErrDuplicateJob   = errors.New("scheduler: job already registered")
	ErrUnknownJob     = errors.New("scheduler: unknown job")
	ErrJobBusy        = errors.New("scheduler: job is already running")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)

// idleWait bounds the sleep when no job is due.
const idleWait = time.Hour

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location
}

// Scheduler sleeps until the earliest due job and starts it in its own
// goroutine. A job never overlaps itself: a tick that arrives while the
// previous run is in progress is counted as skipped.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	cancel  context.CancelFunc
	wake    chan struct{}
	runs    sync.WaitGroup
}

type entry struct {
	job      Job
	schedule Schedule
	next     time.Time
	busy     bool
	status   JobStatus
}

// New creates a scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	return &Scheduler{
		logger:  config.Logger,
		loc:     config.Timezone,
		now:     time.Now,
		entries: make(map[string]*entry),
		wake:    make(chan struct{}, 1),
	}
}

// Register adds a job. Jobs may be registered before or after Start.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	switch {
	case job == nil:
		return ErrNilJob
	case schedule == nil:
		return ErrNilSchedule
	}

	s.mu.Lock()
	name := job.Name()
	if _, ok := s.entries[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	e := &entry{job: job, schedule: schedule, next: schedule.Next(s.now().In(s.loc))}
	s.entries[name] = e
	s.mu.Unlock()

	s.poke()
	s.logger.Info("job registered", "job", name, "schedule", schedule.String(), "next_run", e.next)
	return nil
}

// Start launches the dispatch loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.runs.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started", "jobs", len(s.entries), "timezone", s.loc.String())
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.cancel()
	s.cancel = nil
	s.mu.Unlock()

	s.runs.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.runs.Done()

	timer := time.NewTimer(s.untilNextDue())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.dispatch(ctx)
		case <-s.wake:
		}
		timer.Reset(s.untilNextDue())
	}
}

func (s *Scheduler) untilNextDue() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := idleWait
	now := s.now()
	for _, e := range s.entries {
		if e.next.IsZero() {
			continue
		}
		wait = min(wait, max(e.next.Sub(now), 0))
	}
	return wait
}

func (s *Scheduler) dispatch(ctx context.Context) {
	now := s.now().In(s.loc)

	s.mu.Lock()
	var due []*entry
	for name, e := range s.entries {
		if e.next.IsZero() || now.Before(e.next) {
			continue
		}
		e.next = e.schedule.Next(now)
		if e.busy {
			e.status.Skipped++
			s.logger.Warn("previous run still in progress, skipping", "job", name)
			continue
		}
		e.busy = true
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			s.execute(ctx, e, false)
		}()
	}
}

// execute runs a job whose busy flag the caller has already set.
func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) Outcome {
	out := Outcome{Job: e.job.Name(), Started: s.now(), Manual: manual}
	log := s.logger.With("job", out.Job, "manual", manual)
	log.Info("job started")

	out.Err = runRecovered(ctx, e.job)
	out.Duration = s.now().Sub(out.Started)

	s.mu.Lock()
	e.busy = false
	e.status.Runs++
	if out.Err != nil {
		e.status.Failures++
	}
	e.status.Last = &out
	s.mu.Unlock()

	if out.Err != nil {
		log.Error("job failed", "duration", out.Duration.String(), "error", out.Err)
	} else {
		log.Info("job completed", "duration", out.Duration.String())
	}
	return out
}

func runRecovered(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (Outcome, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	switch {
	case !ok:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	case e.busy:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrJobBusy, name)
	}
	e.busy = true
	s.mu.Unlock()

	out := s.execute(ctx, e, true)
	return out, out.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name        string
	Description string
	Schedule    string
	Running     bool
	NextRun     time.Time
	Runs        int64
	Failures    int64
	Skipped     int64
	Last        *Outcome
}

// Jobs returns the status of every registered job ordered by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for name, e := range s.entries {
		st := e.status
		st.Name = name
		st.Description = e.job.Description()
		st.Schedule = e.schedule.String()
		st.Running = e.busy
		st.NextRun = e.next
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b JobStatus) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
