package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler runs the game's background timing: recurring jobs (auction
// sweeps, leaderboard refreshes) and named one-shot deadlines (spawn
// expiry). Registering under an existing name replaces the old task, which
// is how a respawn on a busy channel supersedes the previous expiry timer.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	delays map[string]*time.Timer
	logger *zap.Logger
	done   chan struct{}
}

type job struct {
	ticker *time.Ticker
	cancel chan struct{}
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*job),
		delays: make(map[string]*time.Timer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *Scheduler) guard(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

// AddTicker registers a task to run on a fixed interval, replacing any
// existing task with the same name.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		close(old.cancel)
	}
	j := &job{
		ticker: time.NewTicker(interval),
		cancel: make(chan struct{}),
	}
	s.jobs[name] = j

	go func() {
		defer j.ticker.Stop()
		for {
			select {
			case <-j.ticker.C:
				s.guard(name, fn)
			case <-j.cancel:
				return
			case <-s.done:
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered",
		zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay. A second AddDelay under the
// same name drops the earlier timer without firing it.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.delays[name]; ok {
		old.Stop()
	}
	s.delays[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.delays, name)
			s.mu.Unlock()
		}()
		s.guard(name, fn)
	})
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		close(j.cancel)
		delete(s.jobs, name)
	}
	if t, ok := s.delays[name]; ok {
		t.Stop()
		delete(s.delays, name)
	}
}

// Stop stops all tasks. Pending one-shot timers are left to fire; their
// callbacks must tolerate running after shutdown.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// ListTickers returns the names of all registered ticker tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
