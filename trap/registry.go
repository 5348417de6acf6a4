package trap

import (
	"sort"
	"sync"

	isolate "github.com/wippyai/isolate"
)

// Registry maps host address ranges to the trap they classify to. The pool
// registers a guard range when it arms a slot and removes it when the slot
// is released, under the pool's own exclusion; Classify may run concurrently
// on any thread.
//
// A Registry is an explicit object, not a process singleton, so independent
// pools (and tests) classify against independent tables.
type Registry struct {
	mu     sync.RWMutex
	guards []addrRange // guard regions of memory and table slots
	stacks []addrRange // overflow zones at the low end of guest stacks
	code   []addrRange // compiled guest code, for embedder PC checks
}

type addrRange struct {
	start uintptr
	end   uintptr // half open
	code  Code
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddGuard registers [start, end) as a guard region whose faults classify
// as code (MemoryOutOfBounds or TableOutOfBounds). The range must be
// registered before the slot it guards is handed out.
func (g *Registry) AddGuard(start, end uintptr, code Code) {
	g.add(&g.guards, addrRange{start: start, end: end, code: code})
}

// RemoveGuard drops the guard range starting at start.
func (g *Registry) RemoveGuard(start uintptr) {
	g.remove(&g.guards, start)
}

// AddStackGuard registers [start, end) as the overflow zone of a guest
// stack. Faults here classify as StackOverflow.
func (g *Registry) AddStackGuard(start, end uintptr) {
	g.add(&g.stacks, addrRange{start: start, end: end, code: StackOverflow})
}

// RemoveStackGuard drops the stack guard starting at start.
func (g *Registry) RemoveStackGuard(start uintptr) {
	g.remove(&g.stacks, start)
}

// AddCode registers ranges of compiled guest code from a module description.
func (g *Registry) AddCode(ranges []isolate.CodeRange) {
	for _, r := range ranges {
		g.add(&g.code, addrRange{start: r.Start, end: r.End})
	}
}

// RemoveCode drops previously registered code ranges.
func (g *Registry) RemoveCode(ranges []isolate.CodeRange) {
	for _, r := range ranges {
		g.remove(&g.code, r.Start)
	}
}

// CodeContains reports whether pc lies within registered guest code.
func (g *Registry) CodeContains(pc uintptr) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := lookup(g.code, pc)
	return ok
}

// Classify resolves a faulting address to a trap code. It allocates nothing:
// two binary searches over sorted, rarely-mutated tables.
func (g *Registry) Classify(addr uintptr) (Code, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if r, ok := lookup(g.guards, addr); ok {
		return r.code, true
	}
	if _, ok := lookup(g.stacks, addr); ok {
		return StackOverflow, true
	}
	return 0, false
}

func (g *Registry) add(ranges *[]addrRange, r addrRange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rs := *ranges
	i := sort.Search(len(rs), func(i int) bool { return rs[i].start >= r.start })
	rs = append(rs, addrRange{})
	copy(rs[i+1:], rs[i:])
	rs[i] = r
	*ranges = rs
}

func (g *Registry) remove(ranges *[]addrRange, start uintptr) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rs := *ranges
	i := sort.Search(len(rs), func(i int) bool { return rs[i].start >= start })
	if i < len(rs) && rs[i].start == start {
		*ranges = append(rs[:i], rs[i+1:]...)
	}
}

func lookup(rs []addrRange, addr uintptr) (addrRange, bool) {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].end > addr })
	if i < len(rs) && rs[i].start <= addr && addr < rs[i].end {
		return rs[i], true
	}
	return addrRange{}, false
}
