// internal/bus/registry.go
package bus

import (
	"fmt"
	"sort"
	"sync"
)

// Options are driver-independent open parameters.
type Options struct {
	FilterSlots  int
	AutoRecovery bool
}

// Opener opens the controller bound to a logical device name.
type Opener func(name string, opts Options) (Controller, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes a driver available to Open. It is called from init().
func Register(driver string, fn Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[driver] = fn
}

// Drivers lists registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open resolves a controller by driver and logical device name.
func Open(driver, name string, opts Options) (Controller, error) {
	driversMu.RLock()
	fn, ok := drivers[driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("driver %q: %w", driver, ErrNoDevice)
	}
	return fn(name, opts)
}
