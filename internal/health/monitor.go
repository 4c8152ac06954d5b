// internal/health/monitor.go
package health

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamzrod/ftbridge/internal/bus"
)

// DefaultRecoverTimeout bounds one bus-off recovery request.
const DefaultRecoverTimeout = 100 * time.Millisecond

// Recoverer issues bus-off recovery requests.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// MonitorConfig wires the state-change monitor.
type MonitorConfig struct {
	Recoverer      Recoverer
	AutoRecovery   bool // controller leaves bus-off on its own
	RecoverTimeout time.Duration
	Tracker        *Tracker // optional
	Logger         *slog.Logger
}

// Monitor splits state handling in two contexts.
//
// Notify is the notifier side: it runs on the driver goroutine, stores the
// latest status in a single-slot cell and wakes the deferred side. Run is the
// deferred side: it logs and, on bus-off, makes one bounded recovery request
// per dispatch. Notifications that arrive before Run wakes up coalesce; the
// last one wins.
type Monitor struct {
	rec          Recoverer
	autoRecovery bool
	timeout      time.Duration
	tracker      *Tracker
	logger       *slog.Logger

	latest atomic.Pointer[bus.Status]
	wake   chan struct{}

	attempts atomic.Uint64
	failures atomic.Uint64
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Recoverer == nil && !cfg.AutoRecovery {
		return nil, errors.New("health: recoverer required without auto recovery")
	}
	if cfg.RecoverTimeout <= 0 {
		cfg.RecoverTimeout = DefaultRecoverTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		rec:          cfg.Recoverer,
		autoRecovery: cfg.AutoRecovery,
		timeout:      cfg.RecoverTimeout,
		tracker:      cfg.Tracker,
		logger:       cfg.Logger,
		wake:         make(chan struct{}, 1),
	}, nil
}

// Notify records a state change. It never blocks, logs or recovers.
func (m *Monitor) Notify(st bus.Status) {
	m.latest.Store(&st)

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run is the deferred handler loop.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			m.dispatch(ctx)
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context) {
	p := m.latest.Load()
	if p == nil {
		return
	}
	st := *p

	m.logger.Info("bus state change",
		"state", st.State.String(),
		"rx_errors", st.Counts.RX,
		"tx_errors", st.Counts.TX,
	)

	if m.tracker != nil {
		m.tracker.Observe(st)
	}

	if st.State != bus.StateBusOff || m.autoRecovery {
		return
	}

	m.logger.Info("recovering from bus-off", "timeout", m.timeout)
	m.attempts.Add(1)

	rctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.rec.Recover(rctx)
	cancel()

	if err == nil {
		return
	}

	m.failures.Add(1)
	if m.tracker != nil {
		m.tracker.RecoveryFailed()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("bus recovery timed out", "timeout", m.timeout)
		return
	}
	m.logger.Error("bus recovery failed", "err", err)
}

// Attempts counts recovery requests issued.
func (m *Monitor) Attempts() uint64 { return m.attempts.Load() }

// Failures counts recovery requests that failed or timed out.
func (m *Monitor) Failures() uint64 { return m.failures.Load() }
