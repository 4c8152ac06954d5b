package health

import (
	"testing"

	"github.com/tamzrod/ftbridge/internal/bus"
)

func TestTracker_Transitions(t *testing.T) {
	tr := NewTracker()

	if s := tr.Snapshot(); s.Health != HealthUnknown || s.State != bus.StateUnknown {
		t.Fatalf("boot snapshot = %+v", s)
	}

	// unknown does not accumulate error time
	tr.Tick()
	if tr.Snapshot().SecondsInError != 0 {
		t.Fatalf("unknown must not count as error")
	}

	if !tr.Observe(bus.Status{State: bus.StateErrorActive}) {
		t.Fatalf("unknown -> ok must be a change")
	}

	tr.Observe(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255}})
	tr.Tick()
	tr.Tick()

	s := tr.Snapshot()
	if s.Health != HealthError || s.SecondsInError != 2 || s.BusOffCount != 1 || s.TxErrors != 255 {
		t.Fatalf("bus-off snapshot = %+v", s)
	}

	// repeated bus-off notification is the same episode
	if tr.Observe(bus.Status{State: bus.StateBusOff, Counts: bus.ErrCounts{TX: 255}}) {
		t.Fatalf("bus-off -> bus-off is not a health change")
	}
	if tr.Snapshot().BusOffCount != 1 {
		t.Fatalf("bus-off counted twice")
	}

	tr.Observe(bus.Status{State: bus.StateErrorActive})
	s = tr.Snapshot()
	if s.Health != HealthOK || s.SecondsInError != 0 {
		t.Fatalf("recovered snapshot = %+v", s)
	}
}

func TestTracker_SecondsSaturate(t *testing.T) {
	tr := NewTracker()
	tr.Observe(bus.Status{State: bus.StateErrorPassive})

	tr.mu.Lock()
	tr.s.SecondsInError = SecondsInErrorMax - 1
	tr.mu.Unlock()

	tr.Tick()
	tr.Tick()

	if got := tr.Snapshot().SecondsInError; got != SecondsInErrorMax {
		t.Fatalf("seconds = %d, want %d", got, SecondsInErrorMax)
	}
}

func TestHealthFor(t *testing.T) {
	cases := map[bus.State]uint16{
		bus.StateErrorActive:  HealthOK,
		bus.StateErrorPassive: HealthPassive,
		bus.StateBusOff:       HealthError,
		bus.StateUnknown:      HealthUnknown,
	}
	for st, want := range cases {
		if got := HealthFor(st); got != want {
			t.Fatalf("HealthFor(%v) = %d, want %d", st, got, want)
		}
	}
}

func TestTracker_SeedOnlyBeforeNotifications(t *testing.T) {
	tr := NewTracker()

	if !tr.Seed(bus.Status{State: bus.StateErrorActive}) {
		t.Fatalf("first seed should change health")
	}
	if s := tr.Snapshot(); s.Health != HealthOK || s.State != bus.StateErrorActive {
		t.Fatalf("seeded snapshot = %+v", s)
	}

	tr = NewTracker()
	tr.Observe(bus.Status{State: bus.StateBusOff})

	if tr.Seed(bus.Status{State: bus.StateErrorActive}) {
		t.Fatalf("seed must not override a notification")
	}
	if s := tr.Snapshot(); s.Health != HealthError || s.BusOffCount != 1 {
		t.Fatalf("snapshot = %+v", s)
	}
}
