// internal/bus/filter.go
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/tamzrod/ftbridge/internal/frame"
)

// Filter is a hardware-style acceptance filter.
// A frame matches when the identifier type agrees and
// (frame.ID & Mask) == (ID & Mask). A zero Mask accepts every identifier.
type Filter struct {
	ID       uint32
	Mask     uint32
	Extended bool
}

// AcceptAll matches every standard data or remote frame.
func AcceptAll() Filter {
	return Filter{}
}

func (f Filter) Match(fr frame.Frame) bool {
	if fr.Extended != f.Extended {
		return false
	}
	return fr.ID&f.Mask == f.ID&f.Mask
}

// DefaultFilterSlots is the filter bank size when a driver does not say.
const DefaultFilterSlots = 8

type subscription struct {
	slot   int
	filter Filter
	h      Handler
}

// filterBank is a fixed number of subscription slots.
// Dispatch reads an immutable slice so the receive path never takes a lock.
type filterBank struct {
	mu    sync.Mutex
	slots []bool
	subs  atomic.Pointer[[]subscription]
}

func newFilterBank(n int) *filterBank {
	if n <= 0 {
		n = DefaultFilterSlots
	}
	b := &filterBank{slots: make([]bool, n)}
	empty := []subscription{}
	b.subs.Store(&empty)
	return b
}

func (b *filterBank) add(filter Filter, h Handler) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, used := range b.slots {
		if used {
			continue
		}
		b.slots[i] = true

		cur := *b.subs.Load()
		next := make([]subscription, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, subscription{slot: i, filter: filter, h: h})
		b.subs.Store(&next)

		return i, nil
	}
	return -1, ErrNoFreeFilter
}

func (b *filterBank) remove(slot int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.slots) || !b.slots[slot] {
		return
	}
	b.slots[slot] = false

	cur := *b.subs.Load()
	next := make([]subscription, 0, len(cur))
	for _, s := range cur {
		if s.slot != slot {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

func (b *filterBank) dispatch(f frame.Frame) {
	for _, s := range *b.subs.Load() {
		if s.filter.Match(f) {
			s.h(f)
		}
	}
}
