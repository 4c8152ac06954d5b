// internal/writer/types.go
package writer

import (
	"time"

	"github.com/tamzrod/ftbridge/internal/health"
	"github.com/tamzrod/ftbridge/internal/telemetry"
)

// StatusPlan places the bus status block.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// TelemetryPlan places the telemetry block.
type TelemetryPlan struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
}

// Plan is the fully-built publish plan.
type Plan struct {
	Interval  time.Duration
	Status    *StatusPlan
	Telemetry *TelemetryPlan
}

// Source is what the publisher reads each cycle.
type Source interface {
	Snapshot() telemetry.Reading
	Health() health.Snapshot
}
