package pool

import (
	"github.com/wippyai/isolate/errors"
)

// StackSlot is one guest execution stack. The slot's pages are committed in
// full; the guard gap below the slot's low end is registered as the stack's
// overflow zone, so pushing past the bottom faults and classifies as a
// stack-overflow trap rather than a crash.
type StackSlot struct {
	pool     *Pool
	index    int
	offset   uint64
	moduleID uint64
}

// AcquireStack claims a stack slot for an instance or fiber.
func (p *Pool) AcquireStack(moduleID uint64) (*StackSlot, error) {
	if err := p.checkOpen(errors.PhaseAcquire); err != nil {
		return nil, err
	}
	cp := p.stacks

	idx, err := cp.index.AllocateFor(moduleID)
	if err != nil {
		p.metrics.exhausted(cp.name)
		return nil, err
	}

	off := cp.slotOffset(idx)
	if err := cp.region.Commit(off, cp.slotSize); err != nil {
		cp.index.Free(idx, moduleID)
		return nil, err
	}

	base := cp.region.Base() + uintptr(off)
	p.reg.AddStackGuard(base-uintptr(cp.guardSize), base)

	p.metrics.acquired(cp.name)
	return &StackSlot{pool: p, index: idx, offset: off, moduleID: moduleID}, nil
}

// ReleaseStack scrubs and returns a stack slot.
func (p *Pool) ReleaseStack(s *StackSlot) error {
	if err := p.checkOpen(errors.PhaseRelease); err != nil {
		return err
	}
	cp := p.stacks

	base := cp.region.Base() + uintptr(s.offset)
	p.reg.RemoveStackGuard(base - uintptr(cp.guardSize))

	if err := cp.region.ResetAnon(s.offset, cp.slotSize); err != nil {
		return err
	}
	if err := cp.index.Free(s.index, s.moduleID); err != nil {
		return err
	}
	p.metrics.released(cp.name)
	return nil
}

// Base returns the stack's low end. The guard below it is the overflow zone.
func (s *StackSlot) Base() uintptr {
	return s.pool.stacks.slotBase(s.index)
}

// Size returns the usable stack size in bytes.
func (s *StackSlot) Size() uint64 {
	return s.pool.stacks.slotSize
}

// Top returns the address one past the stack's high end; guest stacks grow
// downward from here.
func (s *StackSlot) Top() uintptr {
	return s.Base() + uintptr(s.Size())
}

// Bytes returns the whole committed stack region.
func (s *StackSlot) Bytes() []byte {
	return s.pool.stacks.region.Slice(s.offset, s.pool.stacks.slotSize)
}

// GuardedBytes returns a view whose low end extends one guard gap below the
// stack, for engines that index downward from Top. Touching the guard part
// faults and classifies as stack overflow.
func (s *StackSlot) GuardedBytes() []byte {
	cp := s.pool.stacks
	return cp.region.Slice(s.offset-cp.guardSize, cp.guardSize+cp.slotSize)
}
