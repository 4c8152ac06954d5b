// internal/bridge/bridge_test.go
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/ftbridge/internal/bus"
	"github.com/tamzrod/ftbridge/internal/frame"
	"github.com/tamzrod/ftbridge/internal/health"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// recordOutput is an indicator output that remembers the last value.
type recordOutput struct {
	mu  sync.Mutex
	set []bool
}

func (r *recordOutput) Set(on bool) error {
	r.mu.Lock()
	r.set = append(r.set, on)
	r.mu.Unlock()
	return nil
}

func (r *recordOutput) last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.set) == 0 {
		return false, false
	}
	return r.set[len(r.set)-1], true
}

func simConfig() Config {
	return Config{
		Driver:         "sim",
		Device:         "sim0",
		Flag:           frame.SolicitFlag,
		Period:         5 * time.Millisecond,
		PollBackoff:    5 * time.Millisecond,
		RecoverTimeout: 100 * time.Millisecond,
		Indicator:      &recordOutput{},
	}
}

func constSource(group int, _ uint32) (int32, int32) {
	return int32(100 * group), int32(-100 * group)
}

func TestStart_TelemetryFlowsIntoCache(t *testing.T) {
	b, err := Start(context.Background(), simConfig(), quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	sim := b.Controller().(*bus.Sim)
	sim.SetResponder(bus.SensorResponder(b.Table(), constSource))

	want := [6]int32{100, 200, 300, -100, -200, -300}
	waitFor(t, "telemetry", func() bool {
		var got [6]int32
		b.GetFTValues(got[:])
		return got == want
	})

	r := b.Snapshot()
	if r.Forces != [3]int32{100, 200, 300} {
		t.Fatalf("forces = %v", r.Forces)
	}

	waitFor(t, "counters", func() bool {
		s := b.Stats()
		return s.Sent > 0 && s.Accepted >= 3
	})
}

func TestStart_SolicitationOnWire(t *testing.T) {
	b, err := Start(context.Background(), simConfig(), quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	sim := b.Controller().(*bus.Sim)
	waitFor(t, "solicitation", func() bool { return len(sim.Transmitted()) > 0 })

	f := sim.Transmitted()[0]
	if f.ID != 0x1b0 || f.Len != 1 || f.Data[0] != 0x01 || f.Extended || f.RTR {
		t.Fatalf("solicitation = %s", f)
	}
}

func TestStart_IndicatorFrame(t *testing.T) {
	cfg := simConfig()
	out := &recordOutput{}
	cfg.Indicator = out

	b, err := Start(context.Background(), cfg, quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	sim := b.Controller().(*bus.Sim)
	sim.Deliver(frame.EncodeIndicator(frame.DefaultIndicatorID, true))

	waitFor(t, "indicator on", func() bool {
		on, ok := out.last()
		return ok && on
	})
}

func TestStart_HealthyBusReportsOK(t *testing.T) {
	b, err := Start(context.Background(), simConfig(), quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	st, err := b.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	h := b.Health()
	if h.Health != health.HealthOK || h.State != bus.StateErrorActive {
		t.Fatalf("controller=%s health=%d state=%s", st.State, h.Health, h.State)
	}

	time.Sleep(50 * time.Millisecond)
	if h := b.Health(); h.Health != health.HealthOK || h.SecondsInError != 0 {
		t.Fatalf("healthy bus drifted: %+v", h)
	}
}

func TestStart_BusOffRecovery(t *testing.T) {
	b, err := Start(context.Background(), simConfig(), quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	sim := b.Controller().(*bus.Sim)
	sim.SetState(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255}})

	waitFor(t, "recovery", func() bool {
		h := b.Health()
		return h.Health == health.HealthOK && h.BusOffCount == 1
	})

	if sim.Recoveries() != 1 {
		t.Fatalf("recoveries = %d, want 1", sim.Recoveries())
	}
	if s := b.Stats(); s.RecoverAttempts != 1 || s.RecoverFailures != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestStart_AutoRecoveryNeverRecovers(t *testing.T) {
	cfg := simConfig()
	cfg.AutoRecovery = true

	b, err := Start(context.Background(), cfg, quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	sim := b.Controller().(*bus.Sim)
	sim.SetState(bus.Status{State: bus.StateBusOff})

	waitFor(t, "controller auto recovery", func() bool {
		return b.Health().Health == health.HealthOK && b.Health().BusOffCount == 1
	})
	if sim.Recoveries() != 0 {
		t.Fatalf("recoveries = %d, want 0", sim.Recoveries())
	}
}

func TestStart_MissingDeviceIsFatal(t *testing.T) {
	cfg := simConfig()
	cfg.Device = ""

	_, err := Start(context.Background(), cfg, quiet())
	if !errors.Is(err, bus.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}

	cfg = simConfig()
	cfg.Driver = "pcan"

	_, err = Start(context.Background(), cfg, quiet())
	if !errors.Is(err, bus.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
}

func TestStart_FilterExhaustionIsFatal(t *testing.T) {
	sim := bus.NewSim(bus.Options{FilterSlots: 1})
	defer sim.Close()

	if _, err := sim.Subscribe(bus.AcceptAll(), func(frame.Frame) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	_, err := start(context.Background(), sim, simConfig(), quiet())
	if !errors.Is(err, bus.ErrNoFreeFilter) {
		t.Fatalf("err = %v, want ErrNoFreeFilter", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	b, err := Start(context.Background(), simConfig(), quiet())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.Status(); !errors.Is(err, bus.ErrClosed) {
		t.Fatalf("Status after close = %v", err)
	}
}
