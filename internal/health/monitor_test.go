package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/ftbridge/internal/bus"
)

type fakeRecoverer struct {
	mu       sync.Mutex
	calls    int
	timeouts []time.Duration
	block    bool // wait for ctx instead of succeeding
	err      error
}

func (f *fakeRecoverer) Recover(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	if dl, ok := ctx.Deadline(); ok {
		f.timeouts = append(f.timeouts, time.Until(dl))
	}
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeRecoverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func startMonitor(t *testing.T, cfg MonitorConfig) (*Monitor, *recordSink) {
	t.Helper()

	sink := &recordSink{}
	cfg.Logger = slog.New(sink)

	m, err := NewMonitor(cfg)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)

	return m, sink
}

func TestMonitor_BusOffTimeoutRecoversOnce(t *testing.T) {
	rec := &fakeRecoverer{block: true}
	m, sink := startMonitor(t, MonitorConfig{
		Recoverer:      rec,
		RecoverTimeout: 20 * time.Millisecond,
	})

	m.Notify(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255, RX: 3}})

	waitFor(t, "timeout log", func() bool {
		return sink.count(slog.LevelError, "bus recovery timed out") == 1
	})

	// no retry without a new notification
	time.Sleep(60 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("recover calls = %d, want 1", rec.count())
	}
	if m.Attempts() != 1 || m.Failures() != 1 {
		t.Fatalf("attempts=%d failures=%d", m.Attempts(), m.Failures())
	}

	rec.mu.Lock()
	got := rec.timeouts[0]
	rec.mu.Unlock()
	if got <= 0 || got > 20*time.Millisecond {
		t.Fatalf("recover deadline %v, want within 20ms", got)
	}

	// a new bus-off notification triggers a new attempt
	m.Notify(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255, RX: 4}})
	waitFor(t, "second attempt", func() bool { return rec.count() == 2 })
}

func TestMonitor_StateChangeLogged(t *testing.T) {
	rec := &fakeRecoverer{}
	m, sink := startMonitor(t, MonitorConfig{Recoverer: rec})

	m.Notify(bus.Status{State: bus.StateErrorPassive, Counts: bus.ErrCounts{TX: 128, RX: 9}})

	waitFor(t, "state log", func() bool {
		return sink.count(slog.LevelInfo, "bus state change") == 1
	})

	v, ok := sink.attr("bus state change", "state")
	if !ok || v.String() != "error-passive" {
		t.Fatalf("state attr = %v (found=%v)", v, ok)
	}
	if rec.count() != 0 {
		t.Fatalf("recovery must only run on bus-off")
	}
}

func TestMonitor_AutoRecoveryNoRequest(t *testing.T) {
	rec := &fakeRecoverer{}
	m, sink := startMonitor(t, MonitorConfig{Recoverer: rec, AutoRecovery: true})

	m.Notify(bus.Status{State: bus.StateBusOff})

	waitFor(t, "state log", func() bool {
		return sink.count(slog.LevelInfo, "bus state change") == 1
	})
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("recover called %d times with auto recovery", rec.count())
	}
}

func TestMonitor_RecoverErrorLogged(t *testing.T) {
	rec := &fakeRecoverer{err: errors.New("restart refused")}
	tr := NewTracker()
	m, sink := startMonitor(t, MonitorConfig{Recoverer: rec, Tracker: tr})

	m.Notify(bus.Status{State: bus.StateBusOff})

	waitFor(t, "failure log", func() bool {
		return sink.count(slog.LevelError, "bus recovery failed") == 1
	})
	if s := tr.Snapshot(); s.RecoveryFailures != 1 || s.Health != HealthError || s.BusOffCount != 1 {
		t.Fatalf("tracker snapshot = %+v", s)
	}
}

func TestMonitor_NotifyNeverBlocks(t *testing.T) {
	rec := &fakeRecoverer{}
	m, err := NewMonitor(MonitorConfig{Recoverer: rec})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	// no Run goroutine: the hand-off must still not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Notify(bus.Status{State: bus.StateErrorPassive, Counts: bus.ErrCounts{TX: uint8(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Notify blocked")
	}

	// last write wins
	if got := m.latest.Load().Counts.TX; got != 99 {
		t.Fatalf("latest TX = %d, want 99", got)
	}
}

func TestNewMonitor_RequiresRecoverer(t *testing.T) {
	if _, err := NewMonitor(MonitorConfig{}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewMonitor(MonitorConfig{AutoRecovery: true}); err != nil {
		t.Fatalf("auto recovery needs no recoverer: %v", err)
	}
}
