// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"

	"github.com/tamzrod/ftbridge/internal/status"
)

// StatusWriter is the delivery-only contract for bus status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// busStatusWriter is the concrete implementation used by the publisher.
type busStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// NewStatusWriter builds a status writer if status is enabled in the plan.
// If plan.Status is nil, status is disabled.
func NewStatusWriter(plan Plan, clients map[string]endpointClient) (*busStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}

	sp := plan.Status

	return &busStatusWriter{
		plan:     sp,
		cli:      clients[sp.Endpoint],
		needFull: true, // full re-assert on first successful write
		nameRegs: status.EncodeDeviceName(sp.DeviceName),
	}, true
}

// WriteStatus delivers a bus status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *busStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.Encode(s, sw.nameRegs)

		if err := sw.cli.WriteRegisters(unitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: one write per changed slot
	// ------------------------------------------------------------
	var errs []error

	prev := sw.last.Slots()
	cur := s.Slots()
	for slot := range cur {
		if prev[slot] == cur[slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(
			unitID,
			baseAddr+uint16(slot),
			[]uint16{cur[slot]},
		); err != nil {
			errs = append(errs, fmt.Errorf("status writer: slot%d write failed: %w", slot, err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt, re-assert on next success.
		sw.needFull = true
		return errors.Join(errs...)
	}

	sw.last = s
	return nil
}

func (sw *busStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}
