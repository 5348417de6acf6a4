package pool

import (
	"sync"

	"github.com/wippyai/isolate/errors"
)

// IndexAllocator manages a fixed-capacity set of slot indices. Allocate and
// Free are O(1) amortized: a stack of recycled indices plus a high-water
// mark for never-used ones. Indices are always in [0, capacity) and never
// handed out twice concurrently.
//
// The allocator also keeps a best-effort affinity table: freeing records
// which module last occupied an index, and AllocateFor prefers an index
// previously used by the same module. Re-acquiring a warm index keeps more
// copy-on-write pages shared and more of the slot in cache. Affinity is a
// heuristic only; it never affects correctness or capacity.
type IndexAllocator struct {
	mu        sync.Mutex
	class     string
	capacity  int
	highWater int
	free      []int // recycled indices with no affinity owner
	held      []bool
	affinity  map[uint64][]int // module id -> free indices it last used
	lastUsed  []uint64         // index -> module id that last held it, 0 none
}

// NewIndexAllocator creates an allocator for capacity indices. class names
// the resource class in errors.
func NewIndexAllocator(class string, capacity int) *IndexAllocator {
	return &IndexAllocator{
		class:    class,
		capacity: capacity,
		free:     make([]int, 0, capacity),
		held:     make([]bool, capacity),
		affinity: make(map[uint64][]int),
		lastUsed: make([]uint64, capacity),
	}
}

// Capacity returns the fixed number of indices.
func (a *IndexAllocator) Capacity() int {
	return a.capacity
}

// Live returns the number of indices currently held.
func (a *IndexAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	live := 0
	for _, h := range a.held {
		if h {
			live++
		}
	}
	return live
}

// Allocate claims a free index with no affinity preference.
func (a *IndexAllocator) Allocate() (int, error) {
	return a.AllocateFor(0)
}

// AllocateFor claims a free index, preferring one last used by moduleID.
// moduleID zero means no preference. Returns a resource-exhausted error
// when all indices are held; it never blocks.
func (a *IndexAllocator) AllocateFor(moduleID uint64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if moduleID != 0 {
		if idx, ok := a.popAffinity(moduleID); ok {
			a.held[idx] = true
			return idx, nil
		}
	}

	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.held[idx] = true
		return idx, nil
	}

	if a.highWater < a.capacity {
		idx := a.highWater
		a.highWater++
		a.held[idx] = true
		return idx, nil
	}

	// Steal a free index parked under another module's affinity.
	for id := range a.affinity {
		if idx, ok := a.popAffinity(id); ok {
			a.held[idx] = true
			return idx, nil
		}
	}

	return -1, errors.ResourceExhausted(errors.PhaseAcquire, a.class, a.capacity)
}

// Free returns an index to the allocator, recording moduleID for affinity
// (zero for none). Freeing an index that is not currently held is reported
// as a double-free programming error.
func (a *IndexAllocator) Free(index int, moduleID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= a.capacity {
		return errors.InvalidInput(errors.PhaseRelease, "index %d outside [0, %d)", index, a.capacity)
	}
	if !a.held[index] {
		return errors.DoubleFree(a.class, index)
	}

	a.held[index] = false
	a.lastUsed[index] = moduleID
	if moduleID != 0 {
		a.affinity[moduleID] = append(a.affinity[moduleID], index)
	} else {
		a.free = append(a.free, index)
	}
	return nil
}

func (a *IndexAllocator) popAffinity(moduleID uint64) (int, bool) {
	list := a.affinity[moduleID]
	if len(list) == 0 {
		return -1, false
	}
	idx := list[len(list)-1]
	list = list[:len(list)-1]
	if len(list) == 0 {
		delete(a.affinity, moduleID)
	} else {
		a.affinity[moduleID] = list
	}
	return idx, true
}
