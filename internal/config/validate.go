// internal/config/validate.go
package config

import (
	"fmt"
)

// Block sizes used for publish geometry checks.
const (
	StatusBlockRegs    = 20
	TelemetryBlockRegs = 12
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	b := cfg.Bridge

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	switch b.Device.Driver {
	case "", "socketcan", "sim":
	default:
		return fmt.Errorf("device: unknown driver %q", b.Device.Driver)
	}
	if b.Device.Name == "" {
		return fmt.Errorf("device: name is required")
	}
	if b.Device.FilterSlots < 0 {
		return fmt.Errorf("device: filter_slots must be >= 0")
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------

	// base and the three telemetry ids must fit an 11-bit identifier
	if b.Sensor.BaseID+3 > 0x7FF {
		return fmt.Errorf("sensor: base_id 0x%x leaves no room for telemetry ids", b.Sensor.BaseID)
	}
	if b.Sensor.PeriodMs < 0 || b.Sensor.SendTimeoutMs < 0 {
		return fmt.Errorf("sensor: period_ms and send_timeout_ms must be >= 0")
	}

	if b.Health.PollBackoffMs < 0 || b.Health.RecoverTimeoutMs < 0 {
		return fmt.Errorf("health: poll_backoff_ms and recover_timeout_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// INDICATOR
	// ------------------------------------------------------------

	if b.Indicator.FrameID > 0x7FF {
		return fmt.Errorf("indicator: frame_id 0x%x exceeds 11 bits", b.Indicator.FrameID)
	}
	base := b.Sensor.BaseID
	if base == 0 {
		base = DefaultBaseID
	}
	if id := b.Indicator.FrameID; id != 0 && id >= base && id <= base+3 {
		return fmt.Errorf(
			"indicator: frame_id 0x%x collides with sensor ids 0x%x-0x%x",
			id,
			base,
			base+3,
		)
	}

	// ------------------------------------------------------------
	// PUBLISH (OPT-IN)
	// ------------------------------------------------------------

	p := b.Publish
	if p.Endpoint == "" {
		return nil
	}

	// device_name sanity (ASCII only)
	for i := 0; i < len(p.DeviceName); i++ {
		if p.DeviceName[i] > 0x7F {
			return fmt.Errorf("publish: device_name must contain ASCII characters only")
		}
	}

	if p.IntervalMs < 0 || p.TimeoutMs < 0 {
		return fmt.Errorf("publish: interval_ms and timeout_ms must be >= 0")
	}

	// status block and telemetry block must not overlap (inclusive)
	statusStart := uint32(p.BaseSlot) * StatusBlockRegs
	statusEnd := statusStart + StatusBlockRegs - 1
	if statusEnd > 0xFFFF {
		return fmt.Errorf("publish: base_slot %d exceeds register space", p.BaseSlot)
	}

	addr := p.TelemetryAddr
	if addr == 0 {
		addr = DefaultTelemetryAddr
	}
	telStart := uint32(addr)
	telEnd := telStart + TelemetryBlockRegs - 1
	if telEnd > 0xFFFF {
		return fmt.Errorf("publish: telemetry_addr %d exceeds register space", addr)
	}

	if !(telEnd < statusStart || telStart > statusEnd) {
		return fmt.Errorf(
			"publish overlap: telemetry range=%d-%d overlaps status range=%d-%d",
			telStart,
			telEnd,
			statusStart,
			statusEnd,
		)
	}

	return nil
}
