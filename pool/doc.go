// Package pool implements the pooling instance allocator: fixed-capacity
// sets of reusable, guard-paged virtual-memory slots for instance memories,
// tables, stacks and instance records.
//
// # Geometry
//
// Each resource class owns one contiguous reservation laid out as
//
//	| guard | slot 0 | guard | slot 1 | guard | ... | slot N-1 | guard |
//
// Guard gaps are never mapped readable or writable, so an access within
// guard distance of a slot's bounds faults instead of touching a neighbor.
// Reservations are address space only (see vmem); physical pages are
// committed per slot on acquire and returned on release.
//
// # Slot lifecycle
//
// Acquire claims an index from the class's IndexAllocator, maps or commits
// the slot's pages, and registers the slot's guard ranges with the trap
// registry before the slot is handed out. Release removes the ranges,
// scrubs the slot back to an uncommitted, inaccessible state, and only then
// recycles the index — the next tenant of the same index can never observe
// the previous tenant's bytes.
//
// Exhaustion is a normal condition: Acquire returns a resource-exhausted
// error immediately rather than blocking, and the caller decides whether to
// queue, back off or reject. OS mapping failures are reported as distinct
// fatal errors; they mean the host environment, not pool pressure, is
// broken.
//
// # Concurrency
//
// A Pool may be used from any number of goroutines. The free-list mutation
// inside each class's IndexAllocator is the only shared mutable state; a
// claimed slot is exclusively owned by its holder until released.
package pool
