// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxWriteRegisters is the FC16 quantity limit.
const MaxWriteRegisters = 123

var ErrQuantity = errors.New("writer modbus: register quantity out of range")

// EndpointClient publishes register blocks to one Modbus TCP server.
// Writes are serialized because the unit id lives on the shared handler.
// After a transport error goburrow redials on the next write.
type EndpointClient struct {
	mu       sync.Mutex
	endpoint string
	handler  *modbus.TCPClientHandler
	client   modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// NewEndpointClient dials the endpoint once and fails if it is unreachable.
func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("writer modbus: dial %s: %w", cfg.Endpoint, err)
	}

	return &EndpointClient{
		endpoint: cfg.Endpoint,
		handler:  h,
		client:   modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Endpoint() string { return c.endpoint }

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes one contiguous holding register block (FC 16).
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 || len(regs) > MaxWriteRegisters {
		return fmt.Errorf("%w: %d", ErrQuantity, len(regs))
	}
	if int(addr)+len(regs) > 0x10000 {
		return fmt.Errorf("writer modbus: block %d+%d exceeds register space", addr, len(regs))
	}

	payload := make([]byte, 2*len(regs))
	for i, r := range regs {
		payload[2*i] = byte(r >> 8)
		payload[2*i+1] = byte(r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID
	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), payload)
	return err
}
