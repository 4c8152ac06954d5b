// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/ftbridge/internal/bus"
	"github.com/tamzrod/ftbridge/internal/health"
	"github.com/tamzrod/ftbridge/internal/status"
	"github.com/tamzrod/ftbridge/internal/telemetry"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes []writeCall
	fail   error

	lastRegsAddr uint16
	lastRegs     []uint16
}

type writeCall struct {
	unitID uint8
	addr   uint16
	qty    int
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, writeCall{
		unitID: unitID,
		addr:   addr,
		qty:    len(regs),
	})
	f.lastRegsAddr = addr
	f.lastRegs = append([]uint16(nil), regs...)
	return nil
}

// ---- fake source ----

type fakeSource struct {
	reading telemetry.Reading
	health  health.Snapshot
}

func (s *fakeSource) Snapshot() telemetry.Reading { return s.reading }
func (s *fakeSource) Health() health.Snapshot     { return s.health }

func testPlan() Plan {
	return Plan{
		Interval: time.Second,
		Status: &StatusPlan{
			Endpoint:   "ep1",
			UnitID:     1,
			BaseSlot:   0,
			DeviceName: "FT-01",
		},
		Telemetry: &TelemetryPlan{
			Endpoint: "ep1",
			UnitID:   1,
			Address:  100,
		},
	}
}

// ---- tests ----

func TestPublisher_FirstCycleWritesBothBlocks(t *testing.T) {
	fake := &fakeEndpointClient{}
	src := &fakeSource{}
	src.reading.Forces[0] = 1000
	src.reading.Torques[0] = -1000

	p, err := New(testPlan(), map[string]endpointClient{"ep1": fake}, src, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.PublishOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(fake.writes))
	}
	if fake.writes[0].addr != 0 || fake.writes[0].qty != status.SlotsPerDevice {
		t.Fatalf("status write = %+v", fake.writes[0])
	}
	if fake.writes[1].addr != 100 || fake.writes[1].qty != status.TelemetryRegs {
		t.Fatalf("telemetry write = %+v", fake.writes[1])
	}
	if fake.lastRegs[1] != 0x03E8 || fake.lastRegs[6] != 0xFFFF || fake.lastRegs[7] != 0xFC18 {
		t.Fatalf("telemetry regs = %x", fake.lastRegs)
	}
}

func TestPublisher_UnchangedTelemetryNotRewritten(t *testing.T) {
	fake := &fakeEndpointClient{}
	src := &fakeSource{}

	p, _ := New(testPlan(), map[string]endpointClient{"ep1": fake}, src, nil)

	_ = p.PublishOnce()
	n := len(fake.writes)

	if err := p.PublishOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.writes) != n {
		t.Fatalf("expected no new writes, got %d", len(fake.writes)-n)
	}

	src.reading.Forces[2] = 7
	_ = p.PublishOnce()
	if len(fake.writes) != n+1 || fake.lastRegsAddr != 100 {
		t.Fatalf("expected one telemetry rewrite, writes=%+v", fake.writes[n:])
	}
}

func TestPublisher_RewritesAfterFailure(t *testing.T) {
	fake := &fakeEndpointClient{fail: errors.New("connection refused")}
	src := &fakeSource{}

	p, _ := New(testPlan(), map[string]endpointClient{"ep1": fake}, src, nil)

	if err := p.PublishOnce(); err == nil {
		t.Fatalf("expected error")
	}

	fake.fail = nil
	if err := p.PublishOnce(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.writes) != 2 {
		t.Fatalf("expected full status and telemetry re-write, got %d", len(fake.writes))
	}
	if fake.writes[0].qty != status.SlotsPerDevice {
		t.Fatalf("status block was not re-asserted: %+v", fake.writes[0])
	}
}

func TestPublisher_MissingClient(t *testing.T) {
	p, _ := New(testPlan(), map[string]endpointClient{}, &fakeSource{}, nil)

	if err := p.PublishOnce(); err == nil {
		t.Fatalf("expected error for missing client")
	}
}

func TestErrorCode(t *testing.T) {
	if errorCode(nil) != 0 {
		t.Fatalf("nil error should be 0")
	}
	if errorCode(errors.New("boom")) != 1 {
		t.Fatalf("generic error should be 1")
	}

	me := &modbus.ModbusError{FunctionCode: 0x90, ExceptionCode: modbus.ExceptionCodeIllegalDataAddress}
	err := errors.Join(errors.New("other"), me)
	if got := errorCode(err); got != 2 {
		t.Fatalf("modbus exception code = %d, want 2", got)
	}
}

func TestBuildPlan(t *testing.T) {
	_, err := BuildPlan(publishConfig(""))
	if err == nil {
		t.Fatalf("expected error for empty endpoint")
	}

	plan, err := BuildPlan(publishConfig("10.0.0.5:502"))
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Status.BaseSlot != 2 || plan.Telemetry.Address != 100 || plan.Interval != time.Second {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestStatusFromHealth(t *testing.T) {
	s := status.FromHealth(health.Snapshot{Health: health.HealthPassive, State: bus.StateErrorPassive, RxErrors: 130})
	if s.BusState != 1 || s.RxErrors != 130 {
		t.Fatalf("status = %+v", s)
	}
}
