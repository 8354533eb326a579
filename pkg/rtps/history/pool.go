package history

import (
	"sync"

	"github.com/rs/xid"

	"github.com/rtps-io/rtps-core/pkg/rtps/types"
)

// Handle is a non-owning reference to a pooled CacheChange: a slot index
// plus the generation stamp the slot carried when the handle was taken.
// Resolving a Handle after the slot has been recycled for a different
// change fails instead of silently returning the wrong change (spec.md §9's
// redesign note: an arena of generation-stamped slots stands in for the
// original's shared-pointer graph).
type Handle struct {
	Slot uint32
	Gen  xid.ID
}

// IsZero reports whether h refers to no change.
func (h Handle) IsZero() bool { return h.Slot == 0 }

// ChangePool is an arena of CacheChange slots shared by a WriterHistory or
// ReaderHistory and the proxies that reference its changes. Slots are
// recycled once a change's reference count (types.CacheChange.Release)
// drops to zero; recycling bumps the slot's generation stamp so any
// outstanding Handle into it stops resolving.
type ChangePool struct {
	mu    sync.Mutex
	slots []*types.CacheChange
	tags  []xid.ID
	free  []uint32
}

// NewChangePool returns an empty pool that grows on demand.
func NewChangePool() *ChangePool {
	return &ChangePool{}
}

// Get allocates a change from the pool, zeroing it and tagging it with the
// slot's current generation. The returned change carries one reference
// (AddRef has been called once); callers that retain it beyond the initial
// owner must AddRef again and Release when done.
func (p *ChangePool) Get() *types.CacheChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	var slot uint32
	if n := len(p.free); n > 0 {
		slot = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.slots = append(p.slots, &types.CacheChange{})
		p.tags = append(p.tags, xid.New())
		slot = uint32(len(p.slots))
	}

	c := p.slots[slot-1]
	*c = types.CacheChange{}
	c.SetPoolSlot(slot)
	c.AddRef()
	return c
}

// Release drops one reference on c. When that was the last reference, the
// slot returns to the free list and its generation stamp is bumped so any
// Handle taken while it was live becomes unresolvable.
func (p *ChangePool) Release(c *types.CacheChange) {
	slot := c.PoolSlot()
	if slot == 0 {
		return
	}
	if !c.Release() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags[slot-1] = xid.New()
	p.free = append(p.free, slot)
}

// HandleOf returns the Handle for a still-live change allocated from p.
func (p *ChangePool) HandleOf(c *types.CacheChange) Handle {
	slot := c.PoolSlot()
	if slot == 0 {
		return Handle{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Handle{Slot: slot, Gen: p.tags[slot-1]}
}

// Resolve returns the change a Handle refers to, or ok=false if the slot
// has since been recycled for a different change.
func (p *ChangePool) Resolve(h Handle) (*types.CacheChange, bool) {
	if h.Slot == 0 {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h.Slot) > len(p.slots) || p.tags[h.Slot-1] != h.Gen {
		return nil, false
	}
	return p.slots[h.Slot-1], true
}

// Len reports the number of slots currently allocated out (not free).
func (p *ChangePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}
