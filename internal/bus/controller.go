// internal/bus/controller.go
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/ftbridge/internal/frame"
)

// Controller is the capability the bridge consumes from a CAN controller driver.
// Frame transmission, filtering and error counting live in the driver.
type Controller interface {
	// Subscribe registers h for every inbound frame matching filter.
	// h runs on the driver's dispatch goroutine and must not block.
	// Returns ErrNoFreeFilter when the filter bank is exhausted.
	Subscribe(filter Filter, h Handler) (slot int, err error)

	// Unsubscribe releases a filter slot.
	Unsubscribe(slot int)

	// SetStateHandler registers the single state-change notifier.
	// fn runs on a driver goroutine and must not block.
	SetStateHandler(fn func(Status))

	// Status samples the controller state and error counters on demand.
	Status() (Status, error)

	// Send queues f for transmission without waiting for the bus.
	// done, if non-nil, is called exactly once with the transmit result.
	// A non-nil return means the frame was never queued and done is not called.
	Send(f frame.Frame, timeout time.Duration, done func(error)) error

	// Recover requests bus-off recovery and waits until ctx expires.
	Recover(ctx context.Context) error

	Close() error
}

// Handler receives inbound frames.
type Handler func(frame.Frame)

var (
	ErrNoDevice     = errors.New("bus: device not found")
	ErrNoFreeFilter = errors.New("bus: no free filter")
	ErrBusOff       = errors.New("bus: controller is bus-off")
	ErrTxQueueFull  = errors.New("bus: transmit queue full")
	ErrClosed       = errors.New("bus: closed")
)

// ---- STATE ----

// State is the controller fault confinement state.
type State int

const (
	StateErrorActive State = iota
	StateErrorPassive
	StateBusOff
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateErrorActive:
		return "error-active"
	case StateErrorPassive:
		return "error-passive"
	case StateBusOff:
		return "bus-off"
	default:
		return "unknown"
	}
}

// ErrCounts is the transmit/receive error counter pair.
type ErrCounts struct {
	TX uint8
	RX uint8
}

// Status is one complete state notification or sample.
type Status struct {
	State  State
	Counts ErrCounts
}
