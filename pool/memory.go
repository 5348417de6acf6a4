package pool

import (
	"go.uber.org/zap"

	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/trap"
	"github.com/wippyai/isolate/vmem"
)

// MemorySlot is one linear memory bound to a pool slot: image contents
// mapped copy-on-write (or copied eagerly), committed up to the module's
// current size, with guard ranges armed on both sides. It is exclusively
// owned by one instance until released.
type MemorySlot struct {
	pool      *Pool
	index     int
	offset    uint64 // slot offset within the memories region
	moduleID  uint64
	image     *cow.Image
	committed uint64 // current guest-accessible bytes
	maxBytes  uint64 // image reservation: growth past this is rejected
}

// AcquireMemory claims a memory slot, binds image into it and commits at
// least minBytes (the module's declared initial size). moduleID is the
// affinity hint; zero for none.
//
// Exhaustion of the memories class returns a recoverable resource-exhausted
// error. A mapping failure is fatal and leaves the slot free.
func (p *Pool) AcquireMemory(image *cow.Image, minBytes uint64, moduleID uint64) (*MemorySlot, error) {
	if err := p.checkOpen(errors.PhaseAcquire); err != nil {
		return nil, err
	}
	cp := p.memories
	if image.ReservedSize() > cp.slotSize {
		return nil, errors.Configuration("image reservation %d exceeds memory slot size %d",
			image.ReservedSize(), cp.slotSize)
	}
	minBytes = vmem.PageAlign(minBytes)
	if minBytes > image.ReservedSize() {
		return nil, errors.Configuration("initial size %d exceeds image reservation %d",
			minBytes, image.ReservedSize())
	}

	idx, err := cp.index.AllocateFor(moduleID)
	if err != nil {
		p.metrics.exhausted(cp.name)
		return nil, err
	}

	off := cp.slotOffset(idx)
	if err := image.MapInto(cp.region, off); err != nil {
		cp.index.Free(idx, moduleID)
		return nil, err
	}

	committed := image.InitialSize()
	if committed < minBytes {
		if err := cp.region.Commit(off+committed, minBytes-committed); err != nil {
			cp.region.ResetAnon(off, cp.slotSize)
			cp.index.Free(idx, moduleID)
			return nil, err
		}
		committed = minBytes
	}

	m := &MemorySlot{
		pool:      p,
		index:     idx,
		offset:    off,
		moduleID:  moduleID,
		image:     image,
		committed: committed,
		maxBytes:  image.ReservedSize(),
	}

	// Publish guard ranges before the slot escapes: a fault on any byte
	// within guard distance of the committed range classifies as an
	// out-of-bounds access on this slot.
	base := cp.region.Base() + uintptr(off)
	p.reg.AddGuard(base-uintptr(cp.guardSize), base, trap.MemoryOutOfBounds)
	p.reg.AddGuard(base+uintptr(committed), base+uintptr(cp.slotSize+cp.guardSize), trap.MemoryOutOfBounds)

	p.metrics.acquired(cp.name)
	p.log.Debug("memory slot acquired",
		zap.Int("slot", idx), zap.Uint64("committed", committed))
	return m, nil
}

// ReleaseMemory scrubs the slot and returns it to the pool: guard ranges
// withdrawn, every committed page discarded, protection back to none. The
// next tenant of this index starts from the image's pristine state.
func (p *Pool) ReleaseMemory(m *MemorySlot) error {
	if err := p.checkOpen(errors.PhaseRelease); err != nil {
		return err
	}
	cp := p.memories

	base := cp.region.Base() + uintptr(m.offset)
	p.reg.RemoveGuard(base - uintptr(cp.guardSize))
	p.reg.RemoveGuard(base + uintptr(m.committed))

	if err := cp.region.ResetAnon(m.offset, cp.slotSize); err != nil {
		return err
	}
	if err := cp.index.Free(m.index, m.moduleID); err != nil {
		return err
	}
	p.metrics.released(cp.name)
	p.log.Debug("memory slot released", zap.Int("slot", m.index))
	return nil
}

// Base returns the host address of the memory's first byte.
func (m *MemorySlot) Base() uintptr {
	return m.pool.memories.slotBase(m.index)
}

// Size returns the current guest-accessible size in bytes.
func (m *MemorySlot) Size() uint64 {
	return m.committed
}

// Max returns the growth bound in bytes (the image reservation).
func (m *MemorySlot) Max() uint64 {
	return m.maxBytes
}

// Bytes returns the committed contents as a slice. Indexing past Size()
// through a longer view faults into the guard and traps.
func (m *MemorySlot) Bytes() []byte {
	return m.pool.memories.region.Slice(m.offset, m.committed)
}

// UnguardedBytes returns a view covering the slot's whole reservation.
// Only the first Size() bytes are accessible; the rest faults. Guest
// accessors use this so out-of-bounds offsets reach the guard instead of
// failing a slice bounds check.
func (m *MemorySlot) UnguardedBytes() []byte {
	return m.pool.memories.region.Slice(m.offset, m.pool.memories.slotSize)
}

// Grow commits delta additional bytes (page aligned) from the slot's
// reservation. The base address never moves. Growth past the image
// reservation is a configuration violation: the reservation was sized for
// the module's declared maximum.
func (m *MemorySlot) Grow(delta uint64) error {
	if delta == 0 {
		return nil
	}
	cp := m.pool.memories
	newSize := vmem.PageAlign(m.committed + delta)
	if newSize > m.maxBytes {
		return errors.Configuration("grow to %d exceeds declared maximum %d", newSize, m.maxBytes)
	}

	if err := cp.region.Commit(m.offset+m.committed, newSize-m.committed); err != nil {
		return err
	}

	// Move the trailing guard up to the new committed edge.
	base := cp.region.Base() + uintptr(m.offset)
	m.pool.reg.RemoveGuard(base + uintptr(m.committed))
	m.pool.reg.AddGuard(base+uintptr(newSize), base+uintptr(cp.slotSize+cp.guardSize), trap.MemoryOutOfBounds)
	m.committed = newSize
	return nil
}
