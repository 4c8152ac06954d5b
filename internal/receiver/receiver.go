// internal/receiver/receiver.go
package receiver

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/tamzrod/ftbridge/internal/frame"
	"github.com/tamzrod/ftbridge/internal/telemetry"
)

// Indicator takes indicator commands without blocking.
type Indicator interface {
	Request(on bool)
}

// Config wires the receiver.
type Config struct {
	Table       *frame.AxisTable
	Cache       *telemetry.Cache
	Indicator   Indicator // optional
	IndicatorID uint32
	Logger      *slog.Logger
	Trace       bool // log every frame at debug level
}

// Receiver is the inbound frame callback.
// Handle runs on the driver dispatch goroutine: it never sleeps and holds
// the cache lock only for the copy.
type Receiver struct {
	table       *frame.AxisTable
	cache       *telemetry.Cache
	ind         Indicator
	indicatorID uint32
	logger      *slog.Logger
	trace       bool

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

func New(cfg Config) (*Receiver, error) {
	if cfg.Table == nil {
		return nil, errors.New("receiver: axis table required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("receiver: cache required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Receiver{
		table:       cfg.Table,
		cache:       cfg.Cache,
		ind:         cfg.Indicator,
		indicatorID: cfg.IndicatorID,
		logger:      cfg.Logger,
		trace:       cfg.Trace,
	}, nil
}

// Handle decodes one frame into the cache.
func (r *Receiver) Handle(f frame.Frame) {
	if r.trace {
		r.logger.Debug("can receive", "frame", f.String())
	}

	ft, err := r.table.DecodeForceTorque(f)
	switch {
	case err == nil:
		if werr := r.cache.Write(ft.Group, ft.Force, ft.Torque); werr != nil {
			r.drop(f, werr)
			return
		}
		r.accepted.Add(1)
		return

	case errors.Is(err, frame.ErrUnknownID):
		// not telemetry

	default:
		r.drop(f, err)
		return
	}

	if r.ind == nil {
		return
	}
	on, err := frame.DecodeIndicator(r.indicatorID, f)
	switch {
	case err == nil:
		r.ind.Request(on)
	case errors.Is(err, frame.ErrUnknownID):
	default:
		r.drop(f, err)
	}
}

func (r *Receiver) drop(f frame.Frame, err error) {
	r.dropped.Add(1)
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug("frame dropped", "id", f.ID, "len", f.Len, "err", err)
	}
}

// Accepted counts telemetry frames written to the cache.
func (r *Receiver) Accepted() uint64 { return r.accepted.Load() }

// Dropped counts malformed frames at handled identifiers.
func (r *Receiver) Dropped() uint64 { return r.dropped.Load() }
