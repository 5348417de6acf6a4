package pool

import (
	"unsafe"

	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/trap"
	"github.com/wippyai/isolate/vmem"
)

// tableElemSize is the byte width of one table element: a function or
// extern reference packed into a word.
const tableElemSize = 8

// TableSlot is one guest table bound to a pool slot: a bounds-checked array
// of element references whose backing pages come from the tables class.
type TableSlot struct {
	pool     *Pool
	index    int
	offset   uint64
	moduleID uint64
	size     uint64 // current element count
	maxElems uint64 // declared maximum, growth bound
}

// AcquireTable claims a table slot sized for maxElems elements with
// minElems initially live. Element storage for the declared maximum is
// committed up front; tables are small compared to memories and never
// move.
func (p *Pool) AcquireTable(minElems, maxElems uint64, moduleID uint64) (*TableSlot, error) {
	if err := p.checkOpen(errors.PhaseAcquire); err != nil {
		return nil, err
	}
	cp := p.tables
	if maxElems == 0 {
		maxElems = minElems
	}
	if minElems > maxElems {
		return nil, errors.InvalidInput(errors.PhaseAcquire, "table min %d exceeds max %d", minElems, maxElems)
	}
	byteLen := vmem.PageAlign(maxElems * tableElemSize)
	if byteLen > cp.slotSize {
		return nil, errors.Configuration("table of %d elements exceeds slot size %d", maxElems, cp.slotSize)
	}

	idx, err := cp.index.AllocateFor(moduleID)
	if err != nil {
		p.metrics.exhausted(cp.name)
		return nil, err
	}

	off := cp.slotOffset(idx)
	if byteLen > 0 {
		if err := cp.region.Commit(off, byteLen); err != nil {
			cp.index.Free(idx, moduleID)
			return nil, err
		}
	}

	base := cp.region.Base() + uintptr(off)
	p.reg.AddGuard(base-uintptr(cp.guardSize), base, trap.TableOutOfBounds)
	p.reg.AddGuard(base+uintptr(byteLen), base+uintptr(cp.slotSize+cp.guardSize), trap.TableOutOfBounds)

	p.metrics.acquired(cp.name)
	return &TableSlot{
		pool:     p,
		index:    idx,
		offset:   off,
		moduleID: moduleID,
		size:     minElems,
		maxElems: maxElems,
	}, nil
}

// ReleaseTable scrubs and returns a table slot.
func (p *Pool) ReleaseTable(t *TableSlot) error {
	if err := p.checkOpen(errors.PhaseRelease); err != nil {
		return err
	}
	cp := p.tables

	base := cp.region.Base() + uintptr(t.offset)
	byteLen := vmem.PageAlign(t.maxElems * tableElemSize)
	p.reg.RemoveGuard(base - uintptr(cp.guardSize))
	p.reg.RemoveGuard(base + uintptr(byteLen))

	if err := cp.region.ResetAnon(t.offset, cp.slotSize); err != nil {
		return err
	}
	if err := cp.index.Free(t.index, t.moduleID); err != nil {
		return err
	}
	p.metrics.released(cp.name)
	return nil
}

// Size returns the current element count.
func (t *TableSlot) Size() uint64 {
	return t.size
}

// Base returns the host address of element zero.
func (t *TableSlot) Base() uintptr {
	return t.pool.tables.slotBase(t.index)
}

func (t *TableSlot) elems() []uint64 {
	b := t.pool.tables.region.Slice(t.offset, vmem.PageAlign(t.maxElems*tableElemSize))
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), t.maxElems)
}

// Get reads element i. An index at or past the current size raises a
// table out-of-bounds trap, unwinding the enclosing guest entry.
func (t *TableSlot) Get(i uint64) uint64 {
	if i >= t.size {
		trap.RaiseAddr(trap.TableOutOfBounds, t.Base()+uintptr(i*tableElemSize))
	}
	return t.elems()[i]
}

// Set writes element i, with the same bounds behavior as Get.
func (t *TableSlot) Set(i uint64, ref uint64) {
	if i >= t.size {
		trap.RaiseAddr(trap.TableOutOfBounds, t.Base()+uintptr(i*tableElemSize))
	}
	t.elems()[i] = ref
}

// Grow extends the table by delta elements initialized to ref, up to the
// declared maximum. Returns the previous size, or an error past the bound.
func (t *TableSlot) Grow(delta uint64, ref uint64) (uint64, error) {
	newSize := t.size + delta
	if newSize < t.size || newSize > t.maxElems {
		return 0, errors.Configuration("table grow to %d exceeds declared maximum %d", newSize, t.maxElems)
	}
	old := t.size
	el := t.elems()
	for i := t.size; i < newSize; i++ {
		el[i] = ref
	}
	t.size = newSize
	return old, nil
}
