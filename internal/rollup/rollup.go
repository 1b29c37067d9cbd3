// Package rollup aggregates the usage ledger into daily per-swarm totals on a
// cron schedule, so dashboard queries never scan the raw ledger.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/mtzanidakis/swarmgate/internal/config"
	"github.com/mtzanidakis/swarmgate/internal/store"
)

// lookback covers late finalizations that land after a day boundary.
const lookback = 48 * time.Hour

type Aggregator struct {
	store    *store.Store
	schedule string
	nextRun  time.Time
}

func New(s *store.Store, cfg config.RollupConfig) (*Aggregator, error) {
	if !gronx.New().IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid rollup schedule %q", cfg.Schedule)
	}
	return &Aggregator{store: s, schedule: cfg.Schedule}, nil
}

func (a *Aggregator) Start(ctx context.Context) {
	next, err := gronx.NextTick(a.schedule, false)
	if err != nil {
		slog.Error("rollup schedule failed", "error", err)
		return
	}
	a.nextRun = next

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	slog.Info("rollup aggregator started", "schedule", a.schedule, "next_run", a.nextRun)

	for {
		select {
		case <-ctx.Done():
			slog.Info("rollup aggregator stopped")
			return
		case now := <-ticker.C:
			if now.Before(a.nextRun) {
				continue
			}
			a.run()
			next, err := gronx.NextTick(a.schedule, false)
			if err != nil {
				slog.Error("rollup schedule failed", "error", err)
				return
			}
			a.nextRun = next
		}
	}
}

func (a *Aggregator) run() {
	since := time.Now().Add(-lookback)
	if err := a.store.RollupUsageSince(since); err != nil {
		slog.Error("usage rollup failed", "error", err)
		return
	}
	slog.Debug("usage rollup complete", "since", since)
}
