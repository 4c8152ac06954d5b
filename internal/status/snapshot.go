// internal/status/snapshot.go
package status

import "github.com/tamzrod/ftbridge/internal/health"

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health           uint16
	BusState         uint16
	SecondsInError   uint16
	TxErrors         uint16
	RxErrors         uint16
	BusOffCount      uint16
	RecoveryFailures uint16
}

// FromHealth flattens a health snapshot into register values.
func FromHealth(h health.Snapshot) Snapshot {
	return Snapshot{
		Health:           h.Health,
		BusState:         uint16(h.State),
		SecondsInError:   h.SecondsInError,
		TxErrors:         uint16(h.TxErrors),
		RxErrors:         uint16(h.RxErrors),
		BusOffCount:      h.BusOffCount,
		RecoveryFailures: h.RecoveryFailures,
	}
}

// Slots returns the live slots in slot order.
func (s Snapshot) Slots() [LiveSlots]uint16 {
	return [LiveSlots]uint16{
		SlotHealthCode:       s.Health,
		SlotBusState:         s.BusState,
		SlotSecondsInError:   s.SecondsInError,
		SlotTxErrors:         s.TxErrors,
		SlotRxErrors:         s.RxErrors,
		SlotBusOffCount:      s.BusOffCount,
		SlotRecoveryFailures: s.RecoveryFailures,
	}
}
