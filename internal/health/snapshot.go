// internal/health/snapshot.go
package health

import (
	"context"
	"sync"
	"time"

	"github.com/tamzrod/ftbridge/internal/bus"
)

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state before the first notification.
const HealthUnknown uint16 = 0

// HealthOK represents an error-active controller.
const HealthOK uint16 = 1

// HealthError represents a bus-off controller.
const HealthError uint16 = 2

// HealthPassive represents an error-passive controller.
const HealthPassive uint16 = 3

// SecondsInErrorMax is where seconds_in_error saturates.
const SecondsInErrorMax = 65535

// Snapshot is the bus health as last observed by the monitor.
// It contains no logic and no memory of the past beyond counters.
type Snapshot struct {
	Health           uint16
	State            bus.State
	TxErrors         uint8
	RxErrors         uint8
	SecondsInError   uint16
	BusOffCount      uint16
	RecoveryFailures uint16
	Since            time.Time // last health change
}

// HealthFor maps a controller state to a health code.
func HealthFor(s bus.State) uint16 {
	switch s {
	case bus.StateErrorActive:
		return HealthOK
	case bus.StateErrorPassive:
		return HealthPassive
	case bus.StateBusOff:
		return HealthError
	default:
		return HealthUnknown
	}
}

// Tracker folds state notifications into a Snapshot.
type Tracker struct {
	mu       sync.Mutex
	s        Snapshot
	observed bool
	now      func() time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.s.Health = HealthUnknown
	t.s.State = bus.StateUnknown
	t.s.Since = t.now()
	return t
}

// Observe applies one notification and reports whether the health changed.
func (t *Tracker) Observe(st bus.Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observe(st)
}

// Seed applies a sampled baseline unless a notification already arrived.
func (t *Tracker) Seed(st bus.Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.observed {
		return false
	}
	return t.observe(st)
}

func (t *Tracker) observe(st bus.Status) bool {
	t.observed = true

	h := HealthFor(st.State)
	changed := h != t.s.Health

	if st.State == bus.StateBusOff && t.s.State != bus.StateBusOff && t.s.BusOffCount < SecondsInErrorMax {
		t.s.BusOffCount++
	}

	t.s.State = st.State
	t.s.TxErrors = st.Counts.TX
	t.s.RxErrors = st.Counts.RX

	if changed {
		t.s.Health = h
		t.s.Since = t.now()
	}
	// Reset seconds-in-error on recovery.
	if h == HealthOK {
		t.s.SecondsInError = 0
	}

	return changed
}

// RecoveryFailed counts one failed bus-off recovery.
func (t *Tracker) RecoveryFailed() {
	t.mu.Lock()
	if t.s.RecoveryFailures < SecondsInErrorMax {
		t.s.RecoveryFailures++
	}
	t.mu.Unlock()
}

// Tick advances seconds_in_error by one while the bus is not OK.
// Unknown does not count as an error.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s.Health == HealthOK || t.s.Health == HealthUnknown {
		return
	}
	if t.s.SecondsInError < SecondsInErrorMax {
		t.s.SecondsInError++
	}
}

// Run ticks once per second until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Snapshot returns the current health by value.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
