// internal/bus/sim.go
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/ftbridge/internal/frame"
)

func init() {
	Register("sim", func(name string, opts Options) (Controller, error) {
		if name == "" {
			return nil, ErrNoDevice
		}
		return NewSim(opts), nil
	})
}

const (
	simTxQueue          = 16
	simTxLog            = 256
	defaultAutoRecovery = 50 * time.Millisecond
)

type txReq struct {
	f    frame.Frame
	done func(error)
}

// drainTx fails every request still queued after the transmit goroutine
// has stopped, so each done runs exactly once.
func drainTx(tx chan txReq) {
	for {
		select {
		case req := <-tx:
			if req.done != nil {
				req.done(ErrClosed)
			}
		default:
			return
		}
	}
}

// Sim is an in-memory controller.
// Transmitted frames are handed to an optional responder whose replies are
// dispatched to subscribers on the transmit goroutine, the way a real driver
// dispatches from its receive work item.
type Sim struct {
	opts Options
	bank *filterBank

	mu           sync.Mutex
	status       Status
	onState      func(Status)
	responder    func(frame.Frame) []frame.Frame
	recoverDelay time.Duration
	txLog        []frame.Frame

	recoveries atomic.Int32

	sendMu sync.RWMutex // held for reading while a request is queued
	tx     chan txReq
	stop   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewSim creates a started simulated controller in error-active state.
func NewSim(opts Options) *Sim {
	s := &Sim{
		opts: opts,
		bank: newFilterBank(opts.FilterSlots),
		tx:   make(chan txReq, simTxQueue),
		stop: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.txLoop()
	return s
}

func (s *Sim) Subscribe(filter Filter, h Handler) (int, error) {
	return s.bank.add(filter, h)
}

func (s *Sim) Unsubscribe(slot int) {
	s.bank.remove(slot)
}

func (s *Sim) SetStateHandler(fn func(Status)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

func (s *Sim) Status() (Status, error) {
	if s.closed.Load() {
		return Status{State: StateUnknown}, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

// Send queues f. With timeout <= 0 a full queue fails immediately.
func (s *Sim) Send(f frame.Frame, timeout time.Duration, done func(error)) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	if s.closed.Load() {
		return ErrClosed
	}

	req := txReq{f: f, done: done}

	if timeout <= 0 {
		select {
		case s.tx <- req:
			return nil
		default:
			return ErrTxQueueFull
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case s.tx <- req:
		return nil
	case <-s.stop:
		return ErrClosed
	case <-t.C:
		return ErrTxQueueFull
	}
}

// Recover waits the configured recovery delay, or fails with ctx's error.
func (s *Sim) Recover(ctx context.Context) error {
	s.recoveries.Add(1)

	s.mu.Lock()
	st := s.status.State
	delay := s.recoverDelay
	s.mu.Unlock()

	if st != StateBusOff {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	s.SetState(Status{State: StateErrorActive})
	return nil
}

func (s *Sim) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.sendMu.Lock()
	close(s.stop)
	s.sendMu.Unlock()

	s.wg.Wait()
	drainTx(s.tx)
	return nil
}

// ---- simulation hooks ----

// SetResponder installs the remote node model.
func (s *Sim) SetResponder(fn func(frame.Frame) []frame.Frame) {
	s.mu.Lock()
	s.responder = fn
	s.mu.Unlock()
}

// SetRecoverDelay sets how long Recover takes to succeed.
func (s *Sim) SetRecoverDelay(d time.Duration) {
	s.mu.Lock()
	s.recoverDelay = d
	s.mu.Unlock()
}

// Recoveries counts Recover calls.
func (s *Sim) Recoveries() int {
	return int(s.recoveries.Load())
}

// Deliver dispatches an inbound frame to matching subscribers on the caller's goroutine.
func (s *Sim) Deliver(f frame.Frame) {
	s.bank.dispatch(f)
}

// SetState changes the controller state and fires the state handler.
func (s *Sim) SetState(st Status) {
	s.mu.Lock()
	s.status = st
	fn := s.onState
	s.mu.Unlock()

	if fn != nil {
		fn(st)
	}

	if st.State == StateBusOff && s.opts.AutoRecovery {
		time.AfterFunc(defaultAutoRecovery, func() {
			if s.closed.Load() {
				return
			}
			s.mu.Lock()
			still := s.status.State == StateBusOff
			s.mu.Unlock()
			if still {
				s.SetState(Status{State: StateErrorActive})
			}
		})
	}
}

// Transmitted returns a copy of the most recent transmitted frames.
func (s *Sim) Transmitted() []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.Frame, len(s.txLog))
	copy(out, s.txLog)
	return out
}

func (s *Sim) txLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case req := <-s.tx:
			s.transmit(req)
		}
	}
}

func (s *Sim) transmit(req txReq) {
	s.mu.Lock()
	busOff := s.status.State == StateBusOff
	responder := s.responder
	if !busOff {
		if len(s.txLog) == simTxLog {
			copy(s.txLog, s.txLog[1:])
			s.txLog = s.txLog[:simTxLog-1]
		}
		s.txLog = append(s.txLog, req.f)
	}
	s.mu.Unlock()

	if busOff {
		if req.done != nil {
			req.done(ErrBusOff)
		}
		return
	}
	if req.done != nil {
		req.done(nil)
	}

	if responder == nil {
		return
	}
	for _, r := range responder(req.f) {
		s.bank.dispatch(r)
	}
}
