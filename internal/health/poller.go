// internal/health/poller.go
package health

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/ftbridge/internal/bus"
)

// DefaultPollBackoff is the wait between unchanged samples.
const DefaultPollBackoff = 100 * time.Millisecond

// Sampler reads controller state on demand.
type Sampler interface {
	Status() (bus.Status, error)
}

// Poller is the diagnostic sampling loop.
// It logs and feeds the tracker. Recovery stays with Monitor.
type Poller struct {
	sampler Sampler
	backoff time.Duration
	logger  *slog.Logger
	tracker *Tracker
}

func NewPoller(s Sampler, backoff time.Duration, logger *slog.Logger) (*Poller, error) {
	if s == nil {
		return nil, errors.New("health: sampler required")
	}
	if backoff <= 0 {
		backoff = DefaultPollBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{sampler: s, backoff: backoff, logger: logger}, nil
}

// Feed makes the poller seed t with its first successful sample.
// It must be called before Run.
func (p *Poller) Feed(t *Tracker) {
	p.tracker = t
}

// Run samples until ctx is done. A changed sample is logged and the
// controller is resampled at once; an unchanged one backs off.
func (p *Poller) Run(ctx context.Context) {
	prev := bus.Status{State: bus.StateErrorActive}
	var lastErr string
	seeded := false

	for ctx.Err() == nil {
		st, err := p.sampler.Status()
		if err != nil {
			if msg := err.Error(); msg != lastErr {
				lastErr = msg
				p.logger.Warn("bus state sample failed", "err", err)
			}
			if !sleep(ctx, p.backoff) {
				return
			}
			continue
		}
		lastErr = ""

		// a quiet healthy bus never notifies
		if !seeded && p.tracker != nil {
			p.tracker.Seed(st)
		}
		seeded = true

		if Changed(prev, st) {
			prev = st
			p.logger.Info("bus state sampled",
				"state", st.State.String(),
				"rx_errors", st.Counts.RX,
				"tx_errors", st.Counts.TX,
			)
			continue
		}

		if !sleep(ctx, p.backoff) {
			return
		}
	}
}

// sleep waits d or until ctx is done; it reports whether to keep going.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
