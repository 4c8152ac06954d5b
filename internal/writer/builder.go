// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/ftbridge/internal/config"
	wmodbus "github.com/tamzrod/ftbridge/internal/writer/modbus"
)

// BuildPlan converts the publish config into a Writer Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(p cfg.PublishConfig) (Plan, error) {
	if p.Endpoint == "" {
		return Plan{}, errors.New("writer: publish.endpoint required")
	}
	if p.IntervalMs <= 0 {
		return Plan{}, errors.New("writer: publish.interval_ms must be > 0")
	}

	return Plan{
		Interval: time.Duration(p.IntervalMs) * time.Millisecond,
		Status: &StatusPlan{
			Endpoint:   p.Endpoint,
			UnitID:     p.UnitID,
			BaseSlot:   p.BaseSlot,
			DeviceName: p.DeviceName,
		},
		Telemetry: &TelemetryPlan{
			Endpoint: p.Endpoint,
			UnitID:   p.UnitID,
			Address:  p.TelemetryAddr,
		},
	}, nil
}

// BuildEndpointClients creates one TCP client per unique endpoint in the plan.
func BuildEndpointClients(plan Plan, timeout time.Duration) (map[string]endpointClient, func() error, error) {
	unique := map[string]struct{}{}
	if plan.Status != nil {
		unique[plan.Status.Endpoint] = struct{}{}
	}
	if plan.Telemetry != nil {
		unique[plan.Telemetry.Endpoint] = struct{}{}
	}

	clients := make(map[string]endpointClient)
	var closers []func() error

	for endpoint := range unique {
		c, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			for _, fn := range closers {
				_ = fn()
			}
			return nil, nil, err
		}
		clients[endpoint] = c
		closers = append(closers, c.Close)
	}

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	return clients, closeAll, nil
}
