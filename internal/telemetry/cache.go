// internal/telemetry/cache.go
package telemetry

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Groups is the number of axis groups held by the cache.
const Groups = 3

// Values is the length of a flat reading: forces then torques.
const Values = 2 * Groups

var ErrGroupRange = errors.New("telemetry: axis group out of range")

// Reading is the last successfully decoded value per axis group.
// There is no unset state: a fresh cache reads all zero.
type Reading struct {
	Forces  [Groups]int32
	Torques [Groups]int32
}

// Flat returns forces followed by torques.
func (r Reading) Flat() [Values]int32 {
	var out [Values]int32
	copy(out[:Groups], r.Forces[:])
	copy(out[Groups:], r.Torques[:])
	return out
}

// ForceVec returns the forces as a vector in sensor units.
func (r Reading) ForceVec() mgl64.Vec3 {
	return mgl64.Vec3{float64(r.Forces[0]), float64(r.Forces[1]), float64(r.Forces[2])}
}

// TorqueVec returns the torques as a vector in sensor units.
func (r Reading) TorqueVec() mgl64.Vec3 {
	return mgl64.Vec3{float64(r.Torques[0]), float64(r.Torques[1]), float64(r.Torques[2])}
}

// Cache owns the reading. Callers only ever receive copies.
//
// Writes come from the receive path, so the locked section is copy in / copy
// out only and never calls out.
type Cache struct {
	mu sync.Mutex
	r  Reading
}

func NewCache() *Cache {
	return &Cache{}
}

// Write overwrites the force and torque slot of one axis group (1..3).
func (c *Cache) Write(group int, force, torque int32) error {
	if group < 1 || group > Groups {
		return ErrGroupRange
	}
	i := group - 1

	c.mu.Lock()
	c.r.Forces[i] = force
	c.r.Torques[i] = torque
	c.mu.Unlock()

	return nil
}

// ReadAll copies forces then torques into dst, which must hold Values entries.
// It returns the number of values copied.
func (c *Cache) ReadAll(dst []int32) int {
	c.mu.Lock()
	n := copy(dst, c.r.Forces[:])
	n += copy(dst[n:], c.r.Torques[:])
	c.mu.Unlock()
	return n
}

// Snapshot returns the reading by value.
func (c *Cache) Snapshot() Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}
