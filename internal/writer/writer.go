// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/ftbridge/internal/status"
)

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Publisher mirrors bridge state into Modbus holding registers.
type Publisher struct {
	plan    Plan
	src     Source
	clients map[string]endpointClient
	status  *busStatusWriter
	logger  *slog.Logger

	lastTel   []uint16
	telIsSync bool
}

// New creates a publisher. Status and telemetry are each optional.
func New(plan Plan, clients map[string]endpointClient, src Source, logger *slog.Logger) (*Publisher, error) {
	if src == nil {
		return nil, errors.New("writer: source required")
	}
	if plan.Interval <= 0 {
		return nil, errors.New("writer: interval must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sw, _ := NewStatusWriter(plan, clients)

	return &Publisher{
		plan:    plan,
		src:     src,
		clients: clients,
		status:  sw,
		logger:  logger,
	}, nil
}

// PublishOnce writes one status and telemetry cycle.
// Telemetry is written only when it changed or the last write failed.
func (p *Publisher) PublishOnce() error {
	var errs []error

	if p.status != nil {
		s := status.FromHealth(p.src.Health())
		if err := p.status.WriteStatus(s); err != nil {
			errs = append(errs, err)
		}
	}

	if tp := p.plan.Telemetry; tp != nil {
		regs := status.EncodeTelemetry(p.src.Snapshot().Flat())

		if !p.telIsSync || !equalRegs(regs, p.lastTel) {
			cli := p.clients[tp.Endpoint]
			switch {
			case cli == nil:
				errs = append(errs, fmt.Errorf(
					"writer: missing telemetry client for endpoint %s",
					tp.Endpoint,
				))
			default:
				if err := cli.WriteRegisters(tp.UnitID, tp.Address, regs); err != nil {
					p.telIsSync = false
					errs = append(errs, fmt.Errorf(
						"writer: telemetry write failed ep=%s unit=%d addr=%d: %w",
						tp.Endpoint, tp.UnitID, tp.Address, err,
					))
				} else {
					p.telIsSync = true
					p.lastTel = regs
				}
			}
		}
	}

	return errors.Join(errs...)
}

// Run publishes immediately and then once per interval.
// Failures are logged and never stop the loop.
func (p *Publisher) Run(ctx context.Context) {
	var lastCode uint16

	publish := func() {
		err := p.PublishOnce()
		code := errorCode(err)
		if err != nil && code != lastCode {
			p.logger.Warn("publish failed", "code", code, "err", err)
		}
		if err == nil && lastCode != 0 {
			p.logger.Info("publish recovered")
		}
		lastCode = code
	}

	publish()

	ticker := time.NewTicker(p.plan.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish()
		}
	}
}

func equalRegs(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
