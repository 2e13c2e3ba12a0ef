package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gator/domain"
	"gator/internal/logger"
)

const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCancelled = "cancelled"
)

// Cycle is one unit of scheduled work.
type Cycle interface {
	RunCycle(ctx context.Context) (domain.CycleSummary, error)
}

// Scheduler runs a Cycle immediately on start and then once per interval until
// cancelled. Ticks are never delayed by a slow cycle, so cycles may overlap.
type Scheduler struct {
	cycle Cycle

	mu          sync.Mutex
	interval    time.Duration
	state       string
	cancel      context.CancelFunc
	done        chan struct{}
	reset       chan time.Duration
	inflight    sync.WaitGroup
	started     int64
	completed   int64
	lastRunAt   *time.Time
	lastSummary *domain.CycleSummary
	lastErr     string
}

func NewScheduler(cycle Cycle, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", domain.ErrConfiguration, interval)
	}
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		state:    StateIdle,
		reset:    make(chan time.Duration, 1),
	}, nil
}

// ParseInterval parses compact durations such as "30s", "1m" or "2h".
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid interval %q: %v", domain.ErrConfiguration, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %q", domain.ErrConfiguration, s)
	}
	return d, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return errors.New("scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning
	go s.loop(loopCtx, s.interval)
	return nil
}

// Stop cancels the loop and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.inflight.Wait()
	return nil
}

// Run starts the loop, blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// SetInterval changes the tick period. A running loop re-arms its ticker.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", domain.ErrConfiguration, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if s.state == StateRunning {
		select {
		case <-s.reset:
		default:
		}
		s.reset <- d
	}
	return nil
}

func (s *Scheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := domain.SchedulerStatus{
		State:           s.state,
		Interval:        s.interval,
		CyclesStarted:   s.started,
		CyclesCompleted: s.completed,
		LastError:       s.lastErr,
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		st.LastRunAt = &t
	}
	if s.lastSummary != nil {
		sum := *s.lastSummary
		st.LastSummary = &sum
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.state = StateCancelled
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.reset:
			ticker.Reset(d)
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch starts a cycle unless cancellation was requested. The cycle runs on a
// context that survives cancellation so it can finish its current feed.
func (s *Scheduler) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.started++
	s.lastRunAt = &now
	s.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		summary, err := s.cycle.RunCycle(context.WithoutCancel(ctx))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.completed++
		s.lastSummary = &summary
		s.lastErr = ""
		if err != nil {
			s.lastErr = err.Error()
			logger.Debugf("Scrape cycle ended with error: %v", err)
		}
	}()
}
