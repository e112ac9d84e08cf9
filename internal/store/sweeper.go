package store

import (
	"context"
	"log/slog"
	"time"
)

// Default sweep policy: daily passes, buffers idle for a day are evicted,
// log rows older than a week are purged.
const (
	DefaultSweepInterval = 24 * time.Hour
	DefaultMaxIdle       = 24 * time.Hour
	DefaultMaxLogAge     = 7 * 24 * time.Hour
)

// Sweeper runs periodic maintenance passes over a registry: idle-buffer
// eviction and log purging. The loop is sequential so sweeps never overlap;
// a failed sweep is logged and the next tick proceeds normally.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	maxIdle   time.Duration
	maxLogAge time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a sweeper with the default policy.
func NewSweeper(registry *Registry, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		registry:  registry,
		interval:  DefaultSweepInterval,
		maxIdle:   DefaultMaxIdle,
		maxLogAge: DefaultMaxLogAge,
		logger:    logger,
	}
}

// Run executes sweeps on the configured interval until the context is
// cancelled. The first pass runs immediately so rows left over from a
// previous run don't wait a full interval after a restart.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction and purge pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	removed := s.registry.EvictIdle(s.maxIdle)
	if removed > 0 {
		s.logger.Info("evicted idle conversation buffers", "count", removed)
	}

	deleted, err := s.registry.PurgeLog(ctx, s.maxLogAge)
	if err != nil {
		s.logger.Error("failed to purge message log", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("purged old messages from log", "count", deleted)
	}
}
