// internal/scheduler/runner.go
package scheduler

import (
	"context"
	"time"
)

// Run sends one solicitation immediately and then one per period.
// One goroutine. No overlap. No retries.
func (s *Scheduler) Run(ctx context.Context) {
	s.SendOnce()

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SendOnce()
		}
	}
}
