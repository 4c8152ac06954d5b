// internal/bridge/bridge.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tamzrod/ftbridge/internal/bus"
	"github.com/tamzrod/ftbridge/internal/frame"
	"github.com/tamzrod/ftbridge/internal/health"
	"github.com/tamzrod/ftbridge/internal/indicator"
	"github.com/tamzrod/ftbridge/internal/receiver"
	"github.com/tamzrod/ftbridge/internal/scheduler"
	"github.com/tamzrod/ftbridge/internal/telemetry"
)

// Bridge owns the controller and every goroutine that talks to it.
type Bridge struct {
	ctrl  bus.Controller
	table *frame.AxisTable
	cache *telemetry.Cache

	recv    *receiver.Receiver
	sched   *scheduler.Scheduler
	monitor *health.Monitor
	tracker *health.Tracker

	slot   int
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Stats are the bridge counters.
type Stats struct {
	Accepted        uint64 `json:"accepted"`
	Dropped         uint64 `json:"dropped"`
	Sent            uint64 `json:"sent"`
	SendFailed      uint64 `json:"send_failed"`
	RecoverAttempts uint64 `json:"recover_attempts"`
	RecoverFailures uint64 `json:"recover_failures"`
}

// Start brings the bridge up in order: device, cache, filter, state
// notifications, state poller, scheduler. Any failure is returned and
// leaves nothing running.
func Start(ctx context.Context, c Config, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// ---- device ----
	ctrl, err := bus.Open(c.Driver, c.Device, bus.Options{
		FilterSlots:  c.FilterSlots,
		AutoRecovery: c.AutoRecovery,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s device %q: %w", c.Driver, c.Device, err)
	}

	b, err := start(ctx, ctrl, c, logger)
	if err != nil {
		_ = ctrl.Close()
		return nil, err
	}
	return b, nil
}

func start(ctx context.Context, ctrl bus.Controller, c Config, logger *slog.Logger) (*Bridge, error) {
	base := c.BaseID
	if base == 0 {
		base = frame.DefaultBaseID
	}
	table, err := frame.NewAxisTable(base)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	// ---- cache + receive path ----
	cache := telemetry.NewCache()

	out := c.Indicator
	if out == nil {
		out = openIndicator(c.LED, logger)
	}
	ind := indicator.NewWorker(out, logger.With("component", "indicator"))

	indicatorID := c.IndicatorID
	if indicatorID == 0 {
		indicatorID = frame.DefaultIndicatorID
	}

	recv, err := receiver.New(receiver.Config{
		Table:       table,
		Cache:       cache,
		Indicator:   ind,
		IndicatorID: indicatorID,
		Logger:      logger.With("component", "receiver"),
		Trace:       c.Trace,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	// ---- filter (exhaustion is fatal) ----
	slot, err := ctrl.Subscribe(bus.AcceptAll(), recv.Handle)
	if err != nil {
		return nil, fmt.Errorf("bridge: subscribe: %w", err)
	}

	// ---- state notifications ----
	tracker := health.NewTracker()
	monitor, err := health.NewMonitor(health.MonitorConfig{
		Recoverer:      ctrl,
		AutoRecovery:   c.AutoRecovery,
		RecoverTimeout: c.RecoverTimeout,
		Tracker:        tracker,
		Logger:         logger.With("component", "monitor"),
	})
	if err != nil {
		ctrl.Unsubscribe(slot)
		return nil, fmt.Errorf("bridge: %w", err)
	}
	ctrl.SetStateHandler(monitor.Notify)

	// Baseline before any notification; a healthy bus stays silent.
	if st, err := ctrl.Status(); err == nil {
		tracker.Seed(st)
	} else {
		logger.Warn("initial bus state unavailable", "err", err)
	}

	backoff := c.PollBackoff
	if backoff <= 0 {
		backoff = health.DefaultPollBackoff
	}
	poller, err := health.NewPoller(ctrl, backoff, logger.With("component", "poller"))
	if err != nil {
		ctrl.Unsubscribe(slot)
		return nil, fmt.Errorf("bridge: %w", err)
	}
	poller.Feed(tracker)

	// ---- scheduler ----
	period := c.Period
	if period <= 0 {
		period = scheduler.DefaultPeriod
	}
	sched, err := scheduler.New(scheduler.Config{
		BaseID:      base,
		Flag:        c.Flag,
		Toggle:      c.Toggle,
		Period:      period,
		SendTimeout: c.SendTimeout,
		Tag:         c.Tag,
	}, ctrl, logger.With("component", "scheduler"))
	if err != nil {
		ctrl.Unsubscribe(slot)
		return nil, fmt.Errorf("bridge: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	b := &Bridge{
		ctrl:    ctrl,
		table:   table,
		cache:   cache,
		recv:    recv,
		sched:   sched,
		monitor: monitor,
		tracker: tracker,
		slot:    slot,
		cancel:  cancel,
	}

	b.goRun(runCtx, ind.Run)
	b.goRun(runCtx, monitor.Run)
	b.goRun(runCtx, tracker.Run)
	b.goRun(runCtx, poller.Run)
	b.goRun(runCtx, sched.Run)

	logger.Info("bridge started",
		"driver", c.Driver,
		"device", c.Device,
		"base_id", fmt.Sprintf("0x%03x", base),
		"auto_recovery", c.AutoRecovery,
	)

	return b, nil
}

func (b *Bridge) goRun(ctx context.Context, fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

func openIndicator(led string, logger *slog.Logger) indicator.Output {
	if led != "" {
		l, err := indicator.OpenLED(indicator.DefaultLEDRoot, led)
		if err == nil {
			return l
		}
		logger.Warn("indicator led unavailable, logging only", "led", led, "err", err)
	}
	return indicator.Logged{Logger: logger.With("component", "indicator")}
}

// ---- accessors ----

// GetFTValues copies [f0, f1, f2, t0, t1, t2] into dst and returns the
// number of values copied.
func (b *Bridge) GetFTValues(dst []int32) int {
	return b.cache.ReadAll(dst)
}

// Snapshot returns the cached telemetry by value.
func (b *Bridge) Snapshot() telemetry.Reading {
	return b.cache.Snapshot()
}

// Health returns the bus health as tracked from state notifications.
func (b *Bridge) Health() health.Snapshot {
	return b.tracker.Snapshot()
}

// Status samples the controller directly.
func (b *Bridge) Status() (bus.Status, error) {
	return b.ctrl.Status()
}

// Recover issues a manual bus-off recovery request.
func (b *Bridge) Recover(ctx context.Context) error {
	return b.ctrl.Recover(ctx)
}

// Controller exposes the underlying controller.
func (b *Bridge) Controller() bus.Controller {
	return b.ctrl
}

// Table returns the axis table in use.
func (b *Bridge) Table() *frame.AxisTable {
	return b.table
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Accepted:        b.recv.Accepted(),
		Dropped:         b.recv.Dropped(),
		Sent:            b.sched.Sent(),
		SendFailed:      b.sched.Failed(),
		RecoverAttempts: b.monitor.Attempts(),
		RecoverFailures: b.monitor.Failures(),
	}
}

// Close stops every goroutine, releases the filter and closes the device.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
		b.ctrl.Unsubscribe(b.slot)
		b.closeErr = b.ctrl.Close()
		if errors.Is(b.closeErr, bus.ErrClosed) {
			b.closeErr = nil
		}
	})
	return b.closeErr
}
