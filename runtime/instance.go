package runtime

import (
	"encoding/binary"

	isolate "github.com/wippyai/isolate"
	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/pool"
	"github.com/wippyai/isolate/trap"
)

// Instance is one running instance: a record slot, its memories and tables,
// and an execution stack, all bound to pool slots for exactly its lifetime.
// Not thread-safe; one goroutine drives it at a time. Interrupt is safe
// from any goroutine.
type Instance struct {
	module *Module
	alloc  *pool.InstanceAllocation
	intr   trap.Interruptor
	closed bool
}

// Memory returns linear memory idx as a bounds-checked accessor.
func (i *Instance) Memory(idx int) *GuestMemory {
	if idx < 0 || idx >= len(i.alloc.Memories) {
		return nil
	}
	return &GuestMemory{slot: i.alloc.Memories[idx]}
}

// Table returns table idx, or nil.
func (i *Instance) Table(idx int) *pool.TableSlot {
	if idx < 0 || idx >= len(i.alloc.Tables) {
		return nil
	}
	return i.alloc.Tables[idx]
}

// Stack returns the instance's execution stack slot.
func (i *Instance) Stack() *pool.StackSlot {
	return i.alloc.Stack
}

// Record returns the instance's record scratch area.
func (i *Instance) Record() *pool.RecordSlot {
	return i.alloc.Record
}

// Interrupt requests cancellation of whatever this instance is executing.
// The running guest observes it at its next checkpoint and unwinds with an
// Interrupt trap. Safe from any goroutine; idempotent.
func (i *Instance) Interrupt() {
	i.intr.Interrupt()
}

// Close tears the instance down, returning every slot to the pool
// all-or-nothing. The instance must not be executing.
func (i *Instance) Close() error {
	if i.closed {
		return errors.Closed(errors.PhaseRelease, "instance")
	}
	i.closed = true
	return i.alloc.Release()
}

// GuestMemory adapts a pooled memory slot to the isolate.Memory interface.
// Host-side accessors bounds-check and return errors; guest execution paths
// use Unguarded and rely on guard-page classification instead.
type GuestMemory struct {
	slot *pool.MemorySlot
}

var _ isolate.Memory = (*GuestMemory)(nil)
var _ isolate.MemorySizer = (*GuestMemory)(nil)

// Size returns the current committed size in bytes.
func (g *GuestMemory) Size() uint64 {
	return g.slot.Size()
}

// Grow commits pages additional linear-memory pages from the slot's
// reservation. The memory's base address never changes.
func (g *GuestMemory) Grow(pages uint64) error {
	return g.slot.Grow(pages * isolate.PageSize)
}

// Bytes returns the committed contents.
func (g *GuestMemory) Bytes() []byte {
	return g.slot.Bytes()
}

// Unguarded returns a view spanning the whole slot reservation, for guest
// execution paths: offsets past the committed size fault into the guard and
// classify as an out-of-bounds trap.
func (g *GuestMemory) Unguarded() []byte {
	return g.slot.UnguardedBytes()
}

func (g *GuestMemory) check(offset, length uint64) error {
	if offset+length < offset || offset+length > g.slot.Size() {
		return errors.OutOfBounds(offset, length, g.slot.Size())
	}
	return nil
}

func (g *GuestMemory) Read(offset, length uint64) ([]byte, error) {
	if err := g.check(offset, length); err != nil {
		return nil, err
	}
	return g.slot.Bytes()[offset : offset+length : offset+length], nil
}

func (g *GuestMemory) Write(offset uint64, data []byte) error {
	if err := g.check(offset, uint64(len(data))); err != nil {
		return err
	}
	copy(g.slot.Bytes()[offset:], data)
	return nil
}

func (g *GuestMemory) ReadU8(offset uint64) (uint8, error) {
	if err := g.check(offset, 1); err != nil {
		return 0, err
	}
	return g.slot.Bytes()[offset], nil
}

func (g *GuestMemory) ReadU16(offset uint64) (uint16, error) {
	if err := g.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(g.slot.Bytes()[offset:]), nil
}

func (g *GuestMemory) ReadU32(offset uint64) (uint32, error) {
	if err := g.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(g.slot.Bytes()[offset:]), nil
}

func (g *GuestMemory) ReadU64(offset uint64) (uint64, error) {
	if err := g.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(g.slot.Bytes()[offset:]), nil
}

func (g *GuestMemory) WriteU8(offset uint64, value uint8) error {
	if err := g.check(offset, 1); err != nil {
		return err
	}
	g.slot.Bytes()[offset] = value
	return nil
}

func (g *GuestMemory) WriteU16(offset uint64, value uint16) error {
	if err := g.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(g.slot.Bytes()[offset:], value)
	return nil
}

func (g *GuestMemory) WriteU32(offset uint64, value uint32) error {
	if err := g.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(g.slot.Bytes()[offset:], value)
	return nil
}

func (g *GuestMemory) WriteU64(offset uint64, value uint64) error {
	if err := g.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(g.slot.Bytes()[offset:], value)
	return nil
}
