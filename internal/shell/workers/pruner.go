// Package workers contains background workers for deploysmith.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunPruner is the slice of the history store the pruner needs.
type RunPruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// HistoryPrunerConfig configures the history pruner worker.
type HistoryPrunerConfig struct {
	// Retention is how long runs are kept. Zero keeps them forever.
	Retention time.Duration

	// Interval is the time between prune cycles.
	// Default: 1 hour.
	Interval time.Duration

	// Timeout bounds a single prune cycle.
	// Default: 30 seconds.
	Timeout time.Duration
}

// DefaultHistoryPrunerConfig returns the default configuration.
func DefaultHistoryPrunerConfig() HistoryPrunerConfig {
	return HistoryPrunerConfig{
		Interval: time.Hour,
		Timeout:  30 * time.Second,
	}
}

// HistoryPruner periodically deletes runs older than the retention window.
type HistoryPruner struct {
	store  RunPruner
	config HistoryPrunerConfig
	logger *slog.Logger
	now    func() time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHistoryPruner creates a new history pruner worker.
func NewHistoryPruner(s RunPruner, config HistoryPrunerConfig, logger *slog.Logger) *HistoryPruner {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HistoryPruner{
		store:  s,
		config: config,
		logger: logger.With("component", "history_pruner"),
		now:    time.Now,
	}
}

// Enabled reports whether a retention window is configured.
func (p *HistoryPruner) Enabled() bool {
	return p.config.Retention > 0
}

// Start begins the pruner background goroutine. It does nothing when
// retention is disabled.
func (p *HistoryPruner) Start() {
	if !p.Enabled() {
		p.logger.Debug("history pruner disabled")
		return
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go p.run()

	p.logger.Info("history pruner started",
		"retention", p.config.Retention,
		"interval", p.config.Interval,
	)
}

// Stop stops the pruner and waits for an in-progress cycle.
func (p *HistoryPruner) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
	p.logger.Info("history pruner stopped")
}

func (p *HistoryPruner) run() {
	defer p.wg.Done()

	// Run immediately on start
	p.RunOnce(p.ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(p.ctx)
		}
	}
}

// RunOnce executes a single prune cycle and returns the number of runs removed.
func (p *HistoryPruner) RunOnce(ctx context.Context) int64 {
	if !p.Enabled() {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cutoff := p.now().Add(-p.config.Retention)
	n, err := p.store.PruneRuns(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune run history", "error", err)
		return 0
	}

	if n > 0 {
		p.logger.Info("pruned run history", "removed", n, "cutoff", cutoff)
	} else {
		p.logger.Debug("no runs to prune", "cutoff", cutoff)
	}
	return n
}
