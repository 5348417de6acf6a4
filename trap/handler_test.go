//go:build unix

package trap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/isolate/vmem"
)

func TestEnterNormalReturn(t *testing.T) {
	var s Section
	ran := false

	rec := s.Enter(NewRegistry(), func() { ran = true })
	require.Nil(t, rec)
	require.True(t, ran)
	require.Equal(t, Idle, s.State())
}

func TestExplicitRaise(t *testing.T) {
	var s Section

	rec := s.Enter(NewRegistry(), func() {
		Raise(Unreachable)
	})
	require.NotNil(t, rec)
	require.Equal(t, Unreachable, rec.Code)
	require.NotEmpty(t, rec.Location, "explicit traps carry the raising location")
	require.Equal(t, Trapped, s.State())
}

func TestRaiseAddrTableBounds(t *testing.T) {
	rec := Enter(NewRegistry(), func() {
		RaiseAddr(TableOutOfBounds, 0xdead0)
	})
	require.NotNil(t, rec)
	require.Equal(t, TableOutOfBounds, rec.Code)
	require.Equal(t, uintptr(0xdead0), rec.Addr)
}

func TestDivideByZero(t *testing.T) {
	divide := func(a, b int64) int64 { return a / b }

	rec := Enter(NewRegistry(), func() {
		_ = divide(10, 0)
	})
	require.NotNil(t, rec)
	require.Equal(t, IntegerDivideByZero, rec.Code)
}

func TestIntegerOverflow(t *testing.T) {
	// Go defines MinInt64 / -1 as MinInt64, so representability is checked
	// before dividing and raised explicitly, the way a guest interpreter
	// guards i64.div_s.
	divide := func(a, b int64) int64 {
		if a == -1<<63 && b == -1 {
			Raise(IntegerOverflow)
		}
		return a / b
	}

	rec := Enter(NewRegistry(), func() {
		_ = divide(-1<<63, -1)
	})
	require.NotNil(t, rec)
	require.Equal(t, IntegerOverflow, rec.Code)
}

// A fault on a registered guard page classifies as an out-of-bounds trap
// carrying the faulting address.
func TestGuardFaultClassifies(t *testing.T) {
	region, err := vmem.Reserve(4 * vmem.PageSize())
	require.NoError(t, err)
	defer region.Release()

	// Commit one page; the next stays PROT_NONE and acts as the guard.
	require.NoError(t, region.Commit(0, vmem.PageSize()))

	reg := NewRegistry()
	guardStart := region.Base() + uintptr(vmem.PageSize())
	reg.AddGuard(guardStart, guardStart+uintptr(vmem.PageSize()), MemoryOutOfBounds)

	var s Section
	rec := s.Enter(reg, func() {
		// One byte past the committed size.
		oob := region.Slice(0, 2*vmem.PageSize())
		oob[vmem.PageSize()] = 1
	})
	require.NotNil(t, rec)
	require.Equal(t, MemoryOutOfBounds, rec.Code)
	require.GreaterOrEqual(t, rec.Addr, guardStart)
	require.Less(t, rec.Addr, guardStart+uintptr(vmem.PageSize()))
	require.Equal(t, Trapped, s.State())
}

// The last committed byte is accessible; only the byte past it faults.
func TestBoundaryAccess(t *testing.T) {
	region, err := vmem.Reserve(4 * vmem.PageSize())
	require.NoError(t, err)
	defer region.Release()
	require.NoError(t, region.Commit(0, vmem.PageSize()))

	reg := NewRegistry()
	guardStart := region.Base() + uintptr(vmem.PageSize())
	reg.AddGuard(guardStart, guardStart+uintptr(vmem.PageSize()), MemoryOutOfBounds)

	rec := Enter(reg, func() {
		b := region.Slice(0, vmem.PageSize())
		b[vmem.PageSize()-1] = 0x5A // last byte: fine
	})
	require.Nil(t, rec)

	rec = Enter(reg, func() {
		b := region.Slice(0, 2*vmem.PageSize())
		_ = b[vmem.PageSize()] // one past: trap
	})
	require.NotNil(t, rec)
	require.Equal(t, MemoryOutOfBounds, rec.Code)
}

func TestStackGuardClassifiesAsOverflow(t *testing.T) {
	region, err := vmem.Reserve(4 * vmem.PageSize())
	require.NoError(t, err)
	defer region.Release()
	require.NoError(t, region.Commit(vmem.PageSize(), 3*vmem.PageSize()))

	reg := NewRegistry()
	reg.AddStackGuard(region.Base(), region.Base()+uintptr(vmem.PageSize()))

	rec := Enter(reg, func() {
		// Push below the stack's low end.
		b := region.Slice(0, vmem.PageSize())
		b[vmem.PageSize()-8] = 1
	})
	require.NotNil(t, rec)
	require.Equal(t, StackOverflow, rec.Code)
}

// Faults outside every registered range are fatal: Enter re-raises them.
func TestUnclassifiedFaultIsFatal(t *testing.T) {
	region, err := vmem.Reserve(vmem.PageSize())
	require.NoError(t, err)
	defer region.Release()

	var s Section
	func() {
		defer func() {
			require.NotNil(t, recover(), "unclassified fault must re-raise")
		}()
		s.Enter(NewRegistry(), func() {
			_ = region.Slice(0, vmem.PageSize())[0] // PROT_NONE, unregistered
		})
		t.Error("unreachable")
	}()
	require.Equal(t, Fatal, s.State())
}

// Ordinary panics from host logic are not traps and pass through untouched.
func TestHostPanicPassesThrough(t *testing.T) {
	defer func() {
		r := recover()
		require.Equal(t, "host bug", r)
	}()
	Enter(NewRegistry(), func() { panic("host bug") })
	t.Error("unreachable")
}

func TestInterruptCheckpoint(t *testing.T) {
	var intr Interruptor

	rec := Enter(NewRegistry(), func() {
		intr.Checkpoint() // nothing pending
		intr.Interrupt()
		intr.Checkpoint()
		t.Error("checkpoint with pending interrupt must unwind")
	})
	require.NotNil(t, rec)
	require.Equal(t, Interrupt, rec.Code)
	require.False(t, intr.Interrupted(), "checkpoint consumes the request")
}

func TestRecordString(t *testing.T) {
	r := &Record{Code: MemoryOutOfBounds, Addr: 0x1000}
	require.Contains(t, r.String(), "out of bounds memory access")
	require.Contains(t, r.String(), "0x1000")

	r = &Record{Code: Interrupt}
	require.Equal(t, "trap: interrupted", r.String())
}
