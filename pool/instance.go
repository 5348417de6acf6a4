package pool

import (
	"go.uber.org/zap"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/errors"
)

// InstanceAllocation is the full set of slots bound to one running
// instance: a record slot, the module's memories and tables, and one
// execution stack. It is acquired all-or-nothing and released all-or-
// nothing; a half-built instance never escapes.
type InstanceAllocation struct {
	pool     *Pool
	moduleID uint64

	Record   *RecordSlot
	Memories []*MemorySlot
	Tables   []*TableSlot
	Stack    *StackSlot

	released bool
}

// AcquireInstance binds every slot an instance of desc needs. images must
// hold one image per declared memory (the runtime layer builds them at
// compile time). Any failure rolls back the slots already claimed and
// returns the original error, so exhaustion mid-way leaks nothing.
func (p *Pool) AcquireInstance(desc *isolate.ModuleDescription, images []*cow.Image, moduleID uint64) (alloc *InstanceAllocation, err error) {
	if err := p.checkOpen(errors.PhaseInstantiate); err != nil {
		return nil, err
	}
	if len(images) != len(desc.Memories) {
		return nil, errors.InvalidInput(errors.PhaseInstantiate,
			"%d images for %d declared memories", len(images), len(desc.Memories))
	}
	if err := p.cfg.CheckModule(desc); err != nil {
		return nil, err
	}

	alloc = &InstanceAllocation{pool: p, moduleID: moduleID}
	defer func() {
		if err != nil {
			alloc.rollback()
			alloc = nil
		}
	}()

	if alloc.Record, err = p.AcquireRecord(moduleID); err != nil {
		return nil, err
	}
	for i, m := range desc.Memories {
		var slot *MemorySlot
		if slot, err = p.AcquireMemory(images[i], m.MinPages*isolate.PageSize, moduleID); err != nil {
			return nil, err
		}
		alloc.Memories = append(alloc.Memories, slot)
	}
	for _, tbl := range desc.Tables {
		var slot *TableSlot
		if slot, err = p.AcquireTable(tbl.MinElems, tbl.MaxElems, moduleID); err != nil {
			return nil, err
		}
		alloc.Tables = append(alloc.Tables, slot)
	}
	if alloc.Stack, err = p.AcquireStack(moduleID); err != nil {
		return nil, err
	}

	p.log.Debug("instance allocated",
		zap.String("module", desc.Name),
		zap.Int("record", alloc.Record.index),
		zap.Int("memories", len(alloc.Memories)),
		zap.Int("tables", len(alloc.Tables)),
	)
	return alloc, nil
}

// rollback releases whatever was claimed before a mid-acquisition failure.
func (a *InstanceAllocation) rollback() {
	a.released = true
	if a.Stack != nil {
		a.pool.ReleaseStack(a.Stack)
	}
	for _, t := range a.Tables {
		a.pool.ReleaseTable(t)
	}
	for _, m := range a.Memories {
		a.pool.ReleaseMemory(m)
	}
	if a.Record != nil {
		a.pool.ReleaseRecord(a.Record)
	}
}

// Release returns every slot of the allocation to the pool. All slots are
// released even when one reports an error; the first error wins.
func (a *InstanceAllocation) Release() error {
	if a.released {
		return errors.Closed(errors.PhaseRelease, "instance allocation")
	}
	a.released = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.Stack != nil {
		keep(a.pool.ReleaseStack(a.Stack))
	}
	for _, t := range a.Tables {
		keep(a.pool.ReleaseTable(t))
	}
	for _, m := range a.Memories {
		keep(a.pool.ReleaseMemory(m))
	}
	if a.Record != nil {
		keep(a.pool.ReleaseRecord(a.Record))
	}
	return firstErr
}
