package engine

import (
	"github.com/tetratelabs/wazero/experimental"

	"github.com/wippyai/isolate/cow"
	"github.com/wippyai/isolate/pool"
)

// allocError carries an allocation failure through wazero's allocator hook,
// which has no error return. Instantiate recovers it and converts it back
// into an ordinary error.
type allocError struct {
	err error
}

// poolAllocator implements experimental.MemoryAllocator on top of the slot
// pool. Each Allocate claims one memory slot sized for the module's declared
// maximum; Reallocate commits further pages of the same slot without moving
// the buffer.
type poolAllocator struct {
	pool *pool.Pool
}

// NewAllocator returns a wazero memory allocator drawing from p. Attach it
// with experimental.WithMemoryAllocator on the instantiation context.
func NewAllocator(p *pool.Pool) experimental.MemoryAllocator {
	return &poolAllocator{pool: p}
}

func (a *poolAllocator) Allocate(cap, max uint64) experimental.LinearMemory {
	// wazero hands us byte sizes already clamped by the runtime's memory
	// limit, which Engine derives from the pool geometry. The slot's backing
	// image is empty: wazero applies data segments itself after allocation.
	img, err := cow.Build(nil, max, a.pool.Config().Policy)
	if err != nil {
		panic(allocError{err})
	}
	slot, err := a.pool.AcquireMemory(img, cap, 0)
	if err != nil {
		img.Close()
		panic(allocError{err})
	}
	return &pooledMemory{slot: slot, img: img, pool: a.pool}
}

// pooledMemory adapts one memory slot to wazero's LinearMemory. The slice it
// returns always starts at the slot base; growth commits in place.
type pooledMemory struct {
	slot *pool.MemorySlot
	img  *cow.Image
	pool *pool.Pool
}

func (m *pooledMemory) Reallocate(size uint64) []byte {
	if com := m.slot.Size(); com < size {
		if err := m.slot.Grow(size - com); err != nil {
			return nil // wazero treats nil as grow failure
		}
	}
	// Cap the view at the committed size so callers cannot reslice into
	// uncommitted pages.
	buf := m.slot.Bytes()
	return buf[:size:len(buf)]
}

func (m *pooledMemory) Free() {
	if err := m.pool.ReleaseMemory(m.slot); err != nil {
		panic(allocError{err})
	}
	m.img.Close()
	m.slot = nil
}
