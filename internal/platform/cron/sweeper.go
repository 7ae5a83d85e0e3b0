// Package cron runs the periodic maintenance of live practice state:
// retrying unsaved progress writes and evicting idle sessions.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Maintainer is the part of the practice manager the sweeper drives.
type Maintainer interface {
	FlushPending(ctx context.Context) (written, remaining int)
	EvictIdle(ctx context.Context, maxIdle time.Duration) int
}

// Config controls the sweep schedule.
type Config struct {
	// RetryInterval is how often queued progress writes are retried.
	RetryInterval time.Duration
	// SessionIdleTimeout is how long a session may sit untouched before it
	// is evicted. Eviction is checked on the same schedule as retries.
	SessionIdleTimeout time.Duration
	// Timeout bounds a single sweep. Zero means RetryInterval.
	Timeout time.Duration
}

// Sweeper schedules Maintainer calls with gocron.
type Sweeper struct {
	target    Maintainer
	cfg       Config
	scheduler *gocron.Scheduler
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewSweeper creates a sweeper. It panics if target is nil.
func NewSweeper(target Maintainer, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	if target == nil {
		panic("target cannot be nil")
	}
	if cfg.RetryInterval <= 0 {
		return nil, errors.New("retry interval must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.RetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(time.UTC)
	// A slow store must not stack sweeps on top of each other.
	s.SingletonModeAll()

	return &Sweeper{
		target:    target,
		cfg:       cfg,
		scheduler: s,
		logger:    logger.With(slog.String("component", "sweeper")),
	}, nil
}

// Start schedules the sweep and runs it in the background. The first sweep
// runs immediately. Calling Start twice is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.scheduler.Every(s.cfg.RetryInterval).Do(s.sweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.started = true

	s.logger.Info("sweeper started",
		slog.Duration("retry_interval", s.cfg.RetryInterval),
		slog.Duration("session_idle_timeout", s.cfg.SessionIdleTimeout))
	return nil
}

// Stop halts the schedule. A sweep already running is allowed to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.started = false
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one sweep synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) {
	written, remaining := s.target.FlushPending(ctx)
	if written > 0 || remaining > 0 {
		level := slog.LevelInfo
		if remaining > 0 {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "retried pending progress writes",
			slog.Int("written", written),
			slog.Int("remaining", remaining))
	}

	if s.cfg.SessionIdleTimeout > 0 {
		if n := s.target.EvictIdle(ctx, s.cfg.SessionIdleTimeout); n > 0 {
			s.logger.Debug("idle sessions evicted", slog.Int("count", n))
		}
	}
}
