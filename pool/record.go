package pool

import (
	"github.com/wippyai/isolate/errors"
)

// RecordSlot holds one instance's record: the fixed-size scratch area for
// globals, shadow state and embedder data that lives exactly as long as the
// instance. Pooled like every other class so teardown leaves nothing behind.
type RecordSlot struct {
	pool     *Pool
	index    int
	offset   uint64
	moduleID uint64
}

// AcquireRecord claims an instance-record slot.
func (p *Pool) AcquireRecord(moduleID uint64) (*RecordSlot, error) {
	if err := p.checkOpen(errors.PhaseAcquire); err != nil {
		return nil, err
	}
	cp := p.records

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

	p.metrics.acquired(cp.name)
	return &RecordSlot{pool: p, index: idx, offset: off, moduleID: moduleID}, nil
}

// ReleaseRecord scrubs and returns an instance-record slot.
func (p *Pool) ReleaseRecord(r *RecordSlot) error {
	if err := p.checkOpen(errors.PhaseRelease); err != nil {
		return err
	}
	cp := p.records

	if err := cp.region.ResetAnon(r.offset, cp.slotSize); err != nil {
		return err
	}
	if err := cp.index.Free(r.index, r.moduleID); err != nil {
		return err
	}
	p.metrics.released(cp.name)
	return nil
}

// Index returns the slot index; stable for the record's lifetime.
func (r *RecordSlot) Index() int {
	return r.index
}

// Bytes returns the record's scratch area.
func (r *RecordSlot) Bytes() []byte {
	return r.pool.records.region.Slice(r.offset, r.pool.records.slotSize)
}
