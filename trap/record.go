package trap

import (
	"fmt"
	"runtime"
)

// Record is one typed trap: what went wrong and, when known, where. Records
// are created inside the fault handler or by Raise, consumed by the host
// frame that entered guest execution, and never persisted beyond one call.
type Record struct {
	Code Code
	// Addr is the faulting address for memory-protection traps, zero for
	// explicit traps.
	Addr uintptr
	// Location is the guest program location for explicit traps,
	// "file:line" form, best effort.
	Location string
}

func (r *Record) String() string {
	switch {
	case r.Addr != 0:
		return fmt.Sprintf("trap: %s at address %#x", r.Code, r.Addr)
	case r.Location != "":
		return fmt.Sprintf("trap: %s at %s", r.Code, r.Location)
	default:
		return "trap: " + r.Code.String()
	}
}

// Raise unwinds the current guest execution with a typed trap. It must only
// be called below an armed section; raising outside one is a programming
// error and escapes as an ordinary panic.
func Raise(code Code) {
	panic(&Record{Code: code, Location: callerLocation(2)})
}

// RaiseAddr is Raise with an explicit faulting address, for bounds checks
// that detect the violation before touching memory.
func RaiseAddr(code Code, addr uintptr) {
	panic(&Record{Code: code, Addr: addr, Location: callerLocation(2)})
}

func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", file, line)
}
