//go:build linux

// internal/bus/socketcan_linux.go
package bus

import (
	"context"
	"encoding/binary"
	"net"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/tamzrod/ftbridge/internal/frame"
)

func init() {
	Register("socketcan", func(name string, opts Options) (Controller, error) {
		return DialSocketCAN(name, opts)
	})
}

// can_id flag bits as carried in brutella/can Frame.ID.
const (
	canEffFlag uint32 = 0x80000000
	canRtrFlag uint32 = 0x40000000
	canErrFlag uint32 = 0x20000000
	canSffMask uint32 = 0x000007FF
	canEffMask uint32 = 0x1FFFFFFF
)

// Error frame classes (linux/can/error.h).
const (
	canErrCrtl      uint32 = 0x00000004
	canErrBusOff    uint32 = 0x00000040
	canErrRestarted uint32 = 0x00000100
	canErrCnt       uint32 = 0x00000200

	canErrCrtlRxWarning uint8 = 0x04
	canErrCrtlTxWarning uint8 = 0x08
	canErrCrtlRxPassive uint8 = 0x10
	canErrCrtlTxPassive uint8 = 0x20
	canErrCrtlActive    uint8 = 0x40
)

const (
	socketTxQueue   = 32
	errSocketPoll   = 200 * time.Millisecond
	recoverInterval = 10 * time.Millisecond
)

// SocketCAN drives a Linux CAN netdev.
// Data frames go through brutella/can; state changes are taken from a
// second raw socket that only receives error frames.
type SocketCAN struct {
	name  string
	opts  Options
	iface *net.Interface
	bus   *can.Bus
	bank  *filterBank

	errFD int

	mu      sync.Mutex
	onState func(Status)

	sendMu sync.RWMutex // held for reading while a request is queued
	tx     chan txReq
	stop   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// DialSocketCAN opens the CAN interface name (e.g. "can0").
func DialSocketCAN(name string, opts Options) (*SocketCAN, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, errors.Wrapf(ErrNoDevice, "socketcan %s: %v", name, err)
	}

	rwc, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan %s: open data socket", name)
	}

	errFD, err := openErrorSocket(iface)
	if err != nil {
		_ = rwc.Close()
		return nil, errors.Wrapf(err, "socketcan %s: open error socket", name)
	}

	s := &SocketCAN{
		name:  name,
		opts:  opts,
		iface: iface,
		bus:   can.NewBus(rwc),
		bank:  newFilterBank(opts.FilterSlots),
		errFD: errFD,
		tx:    make(chan txReq, socketTxQueue),
		stop:  make(chan struct{}),
	}

	s.bus.SubscribeFunc(s.handle)

	go s.bus.ConnectAndPublish()

	s.wg.Add(2)
	go s.writer()
	go s.errorReader()

	return s, nil
}

func openErrorSocket(iface *net.Interface) (int, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return -1, err
	}

	// no data frames on this socket
	if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, nil); err != nil {
		unix.Close(fd)
		return -1, err
	}
	mask := int(canErrCrtl | canErrBusOff | canErrRestarted | canErrCnt)
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, mask); err != nil {
		unix.Close(fd)
		return -1, err
	}
	tv := unix.NsecToTimeval(errSocketPoll.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: iface.Index}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (s *SocketCAN) Subscribe(filter Filter, h Handler) (int, error) {
	return s.bank.add(filter, h)
}

func (s *SocketCAN) Unsubscribe(slot int) {
	s.bank.remove(slot)
}

func (s *SocketCAN) SetStateHandler(fn func(Status)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

func (s *SocketCAN) Send(f frame.Frame, timeout time.Duration, done func(error)) error {
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

func (s *SocketCAN) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.sendMu.Lock()
	close(s.stop)
	s.sendMu.Unlock()

	err := s.bus.Disconnect()
	s.wg.Wait()
	drainTx(s.tx)
	unix.Close(s.errFD)
	return err
}

// ---- data path ----

func (s *SocketCAN) handle(cf can.Frame) {
	if cf.ID&canErrFlag != 0 {
		return
	}
	s.bank.dispatch(fromCAN(cf))
}

func (s *SocketCAN) writer() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case req := <-s.tx:
			err := s.bus.Publish(toCAN(req.f))
			if err != nil {
				err = errors.Wrapf(err, "socketcan %s: publish id=0x%x", s.name, req.f.ID)
			}
			if req.done != nil {
				req.done(err)
			}
		}
	}
}

func toCAN(f frame.Frame) can.Frame {
	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}
	if f.RTR {
		id |= canRtrFlag
	}
	return can.Frame{ID: id, Length: f.Len, Data: f.Data}
}

func fromCAN(cf can.Frame) frame.Frame {
	f := frame.Frame{
		Extended: cf.ID&canEffFlag != 0,
		RTR:      cf.ID&canRtrFlag != 0,
		Len:      cf.Length,
		Data:     cf.Data,
	}
	if f.Extended {
		f.ID = cf.ID & canEffMask
	} else {
		f.ID = cf.ID & canSffMask
	}
	return f
}

// ---- state notifications ----

func (s *SocketCAN) errorReader() {
	defer s.wg.Done()

	buf := make([]byte, 16)
	last := Status{State: StateErrorActive}

	for !s.closed.Load() {
		n, err := unix.Read(s.errFD, buf)
		if err != nil || n != len(buf) {
			// SO_RCVTIMEO wakeup or short read
			continue
		}

		id := binary.LittleEndian.Uint32(buf[0:4])
		if id&canErrFlag == 0 {
			continue
		}

		st := decodeErrorFrame(id, buf[8:16], last)
		if st == last {
			continue
		}
		last = st

		s.mu.Lock()
		fn := s.onState
		s.mu.Unlock()
		if fn != nil {
			fn(st)
		}
	}
}

// decodeErrorFrame folds one error frame into the previous status.
func decodeErrorFrame(id uint32, data []byte, prev Status) Status {
	st := prev

	if id&canErrCnt != 0 {
		st.Counts = ErrCounts{TX: data[6], RX: data[7]}
	}

	switch {
	case id&canErrBusOff != 0:
		st.State = StateBusOff
	case id&canErrRestarted != 0:
		st.State = StateErrorActive
	case id&canErrCrtl != 0:
		ctrl := data[1]
		switch {
		case ctrl&(canErrCrtlRxPassive|canErrCrtlTxPassive) != 0:
			st.State = StateErrorPassive
		case ctrl&(canErrCrtlActive|canErrCrtlRxWarning|canErrCrtlTxWarning) != 0:
			st.State = StateErrorActive
		}
	}

	return st
}

// ---- on-demand status (netlink) and recovery (iproute2) ----

// Status asks the kernel for the interface state and bus error counters.
func (s *SocketCAN) Status() (Status, error) {
	link, err := netlink.LinkByName(s.name)
	if err != nil {
		return Status{State: StateUnknown}, errors.Wrapf(err, "socketcan %s: link", s.name)
	}
	c, ok := link.(*netlink.Can)
	if !ok {
		return Status{State: StateUnknown}, errors.Errorf("socketcan %s: not a can link (%s)", s.name, link.Type())
	}
	return canLinkStatus(c), nil
}

func canLinkStatus(c *netlink.Can) Status {
	return Status{
		State: kernelState(c.State),
		Counts: ErrCounts{
			TX: clampCount(c.TxError),
			RX: clampCount(c.RxError),
		},
	}
}

func kernelState(s uint32) State {
	switch s {
	case netlink.CAN_STATE_ERROR_ACTIVE, netlink.CAN_STATE_ERROR_WARNING:
		return StateErrorActive
	case netlink.CAN_STATE_ERROR_PASSIVE:
		return StateErrorPassive
	case netlink.CAN_STATE_BUS_OFF:
		return StateBusOff
	default:
		return StateUnknown
	}
}

func clampCount(v uint16) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Recover restarts the controller and waits for it to leave bus-off.
// Requires CAP_NET_ADMIN.
func (s *SocketCAN) Recover(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ip", "link", "set", "dev", s.name, "type", "can", "restart")
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "socketcan %s: restart: %s", s.name, strings.TrimSpace(string(out)))
	}

	t := time.NewTicker(recoverInterval)
	defer t.Stop()

	for {
		st, err := s.Status()
		if err == nil && st.State != StateBusOff {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
