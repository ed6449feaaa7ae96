package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/resource-workflow/internal/pkg/distlock"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

const (
	// DefaultRunTimeout bounds one task run.
	DefaultRunTimeout = 10 * time.Minute

	// DefaultLockTTL is how long a run keeps its distributed lock.
	DefaultLockTTL = 15 * time.Minute
)

// Task is one scheduled job. Spec is a standard five-field cron expression
// evaluated in the scheduler's time zone.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler fires registered tasks on their cron specs. Runs of the same
// task across replicas are serialised through a distributed lock when one
// is configured; a run that finds the lock taken is skipped.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	locks   distlock.Provider
	lockTTL time.Duration
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	tasks   map[string]Task
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLocks serialises task runs across processes.
func WithLocks(p distlock.Provider, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locks = p
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithRunTimeout overrides DefaultRunTimeout.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler creates a scheduler evaluating specs in loc.
func NewScheduler(loc *time.Location, opts ...SchedulerOption) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		lockTTL: DefaultLockTTL,
		timeout: DefaultRunTimeout,
		log:     logger.Component("scheduler"),
		tasks:   make(map[string]Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Register adds a task. It fails on an invalid spec or a duplicate name.
func (s *Scheduler) Register(t Task) error {
	if t.Name == "" || t.Run == nil {
		return errors.New("scheduler: task needs a name and a run function")
	}
	sched, err := s.parser.Parse(t.Spec)
	if err != nil {
		return fmt.Errorf("scheduler: task %s: invalid spec %q: %w", t.Name, t.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[t.Name]; dup {
		return fmt.Errorf("scheduler: task %s already registered", t.Name)
	}
	s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(t) }))
	s.tasks[t.Name] = t
	s.log.Info("task registered", "task", t.Name, "spec", t.Spec)
	return nil
}

// Tasks returns the registered task names, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins firing tasks. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info("started", "tasks", len(s.tasks))
}

// StopAll stops firing new runs, waits for in-flight runs to finish, then
// cancels the scheduler's base context.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cancel()
	s.log.Info("stopped")
}

// RunNow runs a task immediately in the caller's goroutine, with the same
// locking, timeout and panic recovery as a scheduled run.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %s", name)
	}
	return s.run(ctx, t)
}

func (s *Scheduler) fire(t Task) {
	err := s.run(s.ctx, t)
	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		s.log.Info("run skipped, lock held elsewhere", "task", t.Name)
	case err != nil:
		s.log.Error("run failed", "task", t.Name, "error", err.Error())
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("task panicked", "task", t.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				err = fmt.Errorf("task %s panicked: %v", t.Name, r)
			}
		}()
		start := time.Now()
		s.log.Debug("run started", "task", t.Name)
		if err := t.Run(ctx); err != nil {
			return err
		}
		s.log.Info("run finished", "task", t.Name, "elapsed", time.Since(start).Round(time.Millisecond).String())
		return nil
	}

	if s.locks == nil {
		return body(ctx)
	}
	return distlock.WithLock(ctx, s.locks.Lock("detector:"+t.Name, s.lockTTL), body)
}
