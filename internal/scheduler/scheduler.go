// internal/scheduler/scheduler.go
package scheduler

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamzrod/ftbridge/internal/frame"
)

// Sender is the non-blocking transmit the scheduler needs.
type Sender interface {
	Send(f frame.Frame, timeout time.Duration, done func(error)) error
}

// Config is the immutable runtime config of the scheduler.
type Config struct {
	BaseID      uint32
	Flag        byte
	Toggle      bool // alternate Flag and 0 every cycle
	Period      time.Duration
	SendTimeout time.Duration
	Tag         string
}

// DefaultPeriod is the solicitation cadence.
const DefaultPeriod = 250 * time.Millisecond

// DefaultTag identifies solicitation sends in transmit error reports.
const DefaultTag = "ft request"

// Scheduler is a dumb, clock-driven solicitation sender.
// It never waits for a transmit result and never stops on error.
type Scheduler struct {
	cfg    Config
	tx     Sender
	logger *slog.Logger

	cycle  uint64
	sent   atomic.Uint64
	failed atomic.Uint64
}

// New creates a scheduler with immutable config.
func New(cfg Config, tx Sender, logger *slog.Logger) (*Scheduler, error) {
	if tx == nil {
		return nil, errors.New("scheduler: sender required")
	}
	if cfg.BaseID > frame.MaxStdID {
		return nil, errors.New("scheduler: base id exceeds 11 bits")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("scheduler: period must be > 0")
	}
	if cfg.Tag == "" {
		cfg.Tag = DefaultTag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cfg: cfg, tx: tx, logger: logger}, nil
}

// nextFrame builds the solicitation for the current cycle.
func (s *Scheduler) nextFrame() frame.Frame {
	flag := s.cfg.Flag
	if s.cfg.Toggle && s.cycle%2 == 1 {
		flag = 0
	}
	s.cycle++
	return frame.EncodeSolicitation(s.cfg.BaseID, flag)
}

// SendOnce queues exactly one solicitation.
func (s *Scheduler) SendOnce() {
	f := s.nextFrame()

	err := s.tx.Send(f, s.cfg.SendTimeout, s.done)
	if err != nil {
		s.report(err)
	}
}

// done is the transmit completion callback. It runs on the driver goroutine.
func (s *Scheduler) done(err error) {
	if err != nil {
		s.report(err)
		return
	}
	s.sent.Add(1)
}

func (s *Scheduler) report(err error) {
	s.failed.Add(1)
	s.logger.Warn("solicitation send failed", "tag", s.cfg.Tag, "err", err)
}

// Sent counts completed transmissions.
func (s *Scheduler) Sent() uint64 { return s.sent.Load() }

// Failed counts transmissions that failed to queue or complete.
func (s *Scheduler) Failed() uint64 { return s.failed.Load() }
