// internal/indicator/indicator.go
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
)

// Output is a binary indicator such as a status LED.
type Output interface {
	Set(on bool) error
}

// ---- sysfs LED ----

// LED drives /sys/class/leds/<name>/brightness.
type LED struct {
	path string
	max  int
}

// DefaultLEDRoot is where Linux exposes LED class devices.
const DefaultLEDRoot = "/sys/class/leds"

// OpenLED binds to a LED class device under root.
func OpenLED(root, name string) (*LED, error) {
	dir := filepath.Join(root, name)

	max := 1
	if raw, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil && v > 0 {
			max = v
		}
	}

	path := filepath.Join(dir, "brightness")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("indicator: led %q: %w", name, err)
	}

	return &LED{path: path, max: max}, nil
}

func (l *LED) Set(on bool) error {
	v := 0
	if on {
		v = l.max
	}
	return os.WriteFile(l.path, []byte(strconv.Itoa(v)), 0o644)
}

// ---- log-only ----

// Logged reports indicator changes to a logger; used when no LED is wired.
type Logged struct {
	Logger *slog.Logger
}

func (l Logged) Set(on bool) error {
	l.Logger.Info("indicator", "on", on)
	return nil
}

// ---- worker ----

// Worker applies indicator requests off the receive path.
// Request never blocks; only the latest request is applied.
type Worker struct {
	out    Output
	logger *slog.Logger

	want    atomic.Int32 // -1 none, 0 off, 1 on
	wake    chan struct{}
	current int32
}

func NewWorker(out Output, logger *slog.Logger) *Worker {
	w := &Worker{
		out:     out,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		current: -1,
	}
	w.want.Store(-1)
	return w
}

// Request records the desired state and wakes the worker.
func (w *Worker) Request(on bool) {
	v := int32(0)
	if on {
		v = 1
	}
	w.want.Store(v)

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run applies requests until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			v := w.want.Load()
			if v < 0 || v == w.current {
				continue
			}
			if err := w.out.Set(v == 1); err != nil {
				w.logger.Warn("indicator set failed", "on", v == 1, "err", err)
				continue
			}
			w.current = v
		}
	}
}
