package trap

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
)

// State is the phase of one guest entry.
type State int32

const (
	// Idle: no guest code running under this section.
	Idle State = iota
	// Armed: guest code executing, faults are being intercepted.
	Armed
	// Trapped: the last entry ended in a classified trap.
	Trapped
	// Fatal: the last entry hit an unclassifiable fault and re-raised it.
	Fatal
)

// Section is one arming of the fault handler around guest execution. It is
// used by a single goroutine at a time; its State is observable from others.
type Section struct {
	state atomic.Int32
}

// State returns the section's current phase.
func (s *Section) State() State {
	return State(s.state.Load())
}

// Enter runs fn with fault interception armed and returns the trap that
// unwound it, or nil on normal return.
//
// While armed, a memory-protection fault raised by fn carries its faulting
// address out of the runtime; Enter classifies that address against reg.
// Classified faults and explicit Raise calls unwind fn's guest state and
// return here as *Record. Anything else — a fault outside every registered
// range, a non-trap panic — is re-raised untouched: the section reports
// Fatal and the process is expected to die, since a wild fault under guest
// execution means corruption of unknown extent.
func (s *Section) Enter(reg *Registry, fn func()) (rec *Record) {
	s.state.Store(int32(Armed))

	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	defer func() {
		r := recover()
		if r == nil {
			s.state.Store(int32(Idle))
			return
		}
		t, ok := classify(reg, r)
		if !ok {
			s.state.Store(int32(Fatal))
			panic(r)
		}
		s.state.Store(int32(Trapped))
		rec = t
	}()

	fn()
	return nil
}

// Enter is the package-level form for callers that do not observe state.
func Enter(reg *Registry, fn func()) *Record {
	var s Section
	return s.Enter(reg, fn)
}

// classify turns a recovered value into a trap record, or reports that the
// value must be re-raised. It allocates only when it succeeds.
func classify(reg *Registry, r any) (*Record, bool) {
	// Explicit guest trap via Raise.
	if t, ok := r.(*Record); ok {
		return t, true
	}

	rerr, ok := r.(runtime.Error)
	if !ok {
		return nil, false
	}

	// Memory-protection fault: the runtime's fault error exposes the
	// faulting address when SetPanicOnFault is in effect.
	if fe, ok := r.(interface{ Addr() uintptr }); ok {
		addr := fe.Addr()
		if code, ok := reg.Classify(addr); ok {
			return &Record{Code: code, Addr: addr}, true
		}
		return nil, false
	}

	// Arithmetic faults surface as runtime errors without an address.
	msg := rerr.Error()
	switch {
	case strings.Contains(msg, "integer divide by zero"):
		return &Record{Code: IntegerDivideByZero}, true
	case strings.Contains(msg, "integer overflow"):
		return &Record{Code: IntegerOverflow}, true
	}

	return nil, false
}
