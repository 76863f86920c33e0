package engine

import (
	"context"

	"github.com/spottr/hazard-intel/internal/domain"
)

// Sweep removes every hazard whose expiry deadline has passed without a
// single confirmation, marking each expired first. Runs as one atomic
// section, so a feedback submission landing "just before" expiry is
// never lost to a concurrent sweep. Returns the number removed.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var expired []string
	for id, h := range e.hazards {
		if !h.ExpiresAt.IsZero() && now.After(h.ExpiresAt) && h.Confirmations == 0 {
			h.Status = domain.StatusExpired
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(e.hazards, id)
	}

	if len(expired) > 0 {
		e.metrics.HazardsExpired.Add(float64(len(expired)))
		e.metrics.ActiveHazards.Set(float64(len(e.hazards)))
		e.logger.Info("expired hazards removed", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper periodically sweeps expired hazards until the context is
// cancelled. Meant to run as a background goroutine for the lifetime of
// the service.
func (e *Engine) RunSweeper(ctx context.Context) {
	e.logger.Info("expiry sweeper started", "interval", e.cfg.SweepInterval)
	e.metrics.SweeperRunning.Set(1)
	defer e.metrics.SweeperRunning.Set(0)

	ticker := e.clock.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("expiry sweeper stopping", "reason", ctx.Err())
			return
		case <-ticker.Chan():
			e.Sweep()
		}
	}
}
