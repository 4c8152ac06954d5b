// internal/bus/sensor.go
package bus

import (
	"math"

	"github.com/tamzrod/ftbridge/internal/frame"
)

// Source produces the force and torque the simulated sensor reports for a
// group on the n-th solicitation.
type Source func(group int, n uint32) (force, torque int32)

// SensorResponder answers every solicitation at table.Base() with one
// telemetry frame per axis group.
func SensorResponder(table *frame.AxisTable, src Source) func(frame.Frame) []frame.Frame {
	var n uint32
	ids := table.IDs()

	return func(f frame.Frame) []frame.Frame {
		if f.Extended || f.RTR || f.ID != table.Base() {
			return nil
		}
		n++

		out := make([]frame.Frame, 0, len(ids))
		for i, id := range ids {
			force, torque := src(i+1, n)
			out = append(out, frame.EncodeTelemetry(id, force, torque))
		}
		return out
	}
}

// WaveSource is a slow sine per group, phase shifted by group.
func WaveSource(amplitude float64) Source {
	return func(group int, n uint32) (int32, int32) {
		phase := float64(n)*0.05 + float64(group)*2*math.Pi/3
		return int32(amplitude * math.Sin(phase)), int32(amplitude * math.Cos(phase) / 10)
	}
}
