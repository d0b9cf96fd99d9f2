// file: sweeper.go
package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go-lift-control/logger"
	"go-lift-control/models"
)

// lockSweeper expires overdue attempt leases.
type lockSweeper interface {
	SweepExpiredLocks(ctx context.Context) []models.AttemptLock
}

// startSweeper runs the lease sweep on schedule (cron spec or @every).
// Overlapping runs are skipped.
func startSweeper(ctx context.Context, sweeper lockSweeper, schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		expired := sweeper.SweepExpiredLocks(ctx)
		if len(expired) > 0 {
			logger.Info.Printf("[startSweeper] expired %d lease(s)", len(expired))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_SWEEP_SCHEDULE %q: %w", schedule, err)
	}
	c.Start()
	logger.Info.Printf("[startSweeper] lease sweep scheduled %q", schedule)
	return c, nil
}
