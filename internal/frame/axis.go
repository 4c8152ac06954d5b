// internal/frame/axis.go
package frame

import "fmt"

// AxisGroups is the number of logical sensor channels.
const AxisGroups = 3

// AxisTable maps telemetry frame identifiers to axis groups (1..3).
// It is built once at startup and read-only afterwards.
type AxisTable struct {
	base   uint32
	groups map[uint32]int
}

// NewAxisTable builds the base+1, base+2, base+3 -> group 1, 2, 3 mapping.
func NewAxisTable(base uint32) (*AxisTable, error) {
	ids := make(map[uint32]int, AxisGroups)
	for g := 1; g <= AxisGroups; g++ {
		ids[base+uint32(g)] = g
	}
	return NewAxisTableFromMap(base, ids)
}

// NewAxisTableFromMap validates an explicit identifier -> group mapping.
// Every group 1..3 must be present exactly once and every identifier
// must be a valid standard identifier.
func NewAxisTableFromMap(base uint32, ids map[uint32]int) (*AxisTable, error) {
	if base > MaxStdID {
		return nil, fmt.Errorf("axis table: base id 0x%x exceeds 11 bits", base)
	}

	seen := make(map[int]uint32, AxisGroups)
	groups := make(map[uint32]int, len(ids))

	for id, g := range ids {
		if id > MaxStdID {
			return nil, fmt.Errorf("axis table: id 0x%x exceeds 11 bits", id)
		}
		if id == base {
			return nil, fmt.Errorf("axis table: id 0x%x collides with solicitation id", id)
		}
		if g < 1 || g > AxisGroups {
			return nil, fmt.Errorf("axis table: id 0x%x maps to group %d, want 1..%d", id, g, AxisGroups)
		}
		if prev, dup := seen[g]; dup {
			return nil, fmt.Errorf("axis table: group %d mapped by both 0x%x and 0x%x", g, prev, id)
		}
		seen[g] = id
		groups[id] = g
	}

	if len(seen) != AxisGroups {
		return nil, fmt.Errorf("axis table: %d groups mapped, want %d", len(seen), AxisGroups)
	}

	return &AxisTable{base: base, groups: groups}, nil
}

// Base is the solicitation identifier the table was derived from.
func (t *AxisTable) Base() uint32 { return t.base }

// Group returns the axis group for id.
func (t *AxisTable) Group(id uint32) (int, bool) {
	g, ok := t.groups[id]
	return g, ok
}

// IDs returns the telemetry identifiers ordered by group.
func (t *AxisTable) IDs() [AxisGroups]uint32 {
	var out [AxisGroups]uint32
	for id, g := range t.groups {
		out[g-1] = id
	}
	return out
}
