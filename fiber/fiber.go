package fiber

import (
	"sync/atomic"

	"github.com/wippyai/isolate/errors"
	"github.com/wippyai/isolate/trap"
)

// Status is the fiber's lifecycle phase.
type Status int32

const (
	// StatusInitial: created, entry not yet started.
	StatusInitial Status = iota
	// StatusSuspended: parked at a Suspend call, waiting for Resume.
	StatusSuspended
	// StatusRunning: entry executing on the fiber.
	StatusRunning
	// StatusDone: entry returned or trapped; the fiber cannot be resumed.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome is what one leg of fiber execution produced: a value yielded at a
// suspension point, or the final result (Done true), possibly a trap.
type Outcome struct {
	// Value is the yielded value while suspended, or the entry's return
	// value once done.
	Value any
	// Trap is set when the fiber finished by trapping. Implies Done.
	Trap *trap.Record
	// Done reports that the entry finished; the fiber is dead.
	Done bool
}

// Entry is the function a fiber runs. It receives the fiber itself (to
// Suspend) and the value passed to Start.
type Entry func(f *Fiber, arg any) any

// Fiber is one suspendable execution. It is owned by the call that started
// it and must not be resumed concurrently; Status is observable from other
// goroutines.
type Fiber struct {
	status atomic.Int32
	resume chan any
	yield  chan Outcome
}

// Start creates a fiber and runs entry with arg until its first Suspend or
// to completion, returning that first Outcome. The entry runs inside an
// armed trap section against reg: guard faults, stack overflow and explicit
// raises finish the fiber as Done with the trap attached.
func Start(reg *trap.Registry, entry Entry, arg any) (*Fiber, Outcome) {
	f := &Fiber{
		resume: make(chan any),
		yield:  make(chan Outcome),
	}

	go func() {
		first := <-f.resume
		var result any
		rec := trap.Enter(reg, func() {
			result = entry(f, first)
		})
		f.status.Store(int32(StatusDone))
		if rec != nil {
			f.yield <- Outcome{Trap: rec, Done: true}
			return
		}
		f.yield <- Outcome{Value: result, Done: true}
	}()

	f.status.Store(int32(StatusRunning))
	f.resume <- arg
	return f, <-f.yield
}

// Status returns the fiber's current phase.
func (f *Fiber) Status() Status {
	return Status(f.status.Load())
}

// Suspend parks the running fiber, yielding v to the resumer, and returns
// the value the next Resume passes in. It must be called from inside the
// fiber's entry.
func (f *Fiber) Suspend(v any) any {
	f.status.Store(int32(StatusSuspended))
	f.yield <- Outcome{Value: v}
	arg := <-f.resume
	f.status.Store(int32(StatusRunning))
	return arg
}

// Resume continues a suspended fiber with v and blocks until it suspends
// again or finishes. Resuming a fiber that is not suspended is a
// programming error, reported rather than deadlocked.
func (f *Fiber) Resume(v any) (Outcome, error) {
	if Status(f.status.Load()) != StatusSuspended {
		return Outcome{}, errors.InvalidInput(errors.PhaseExecute,
			"resume of %s fiber", f.Status())
	}
	f.resume <- v
	return <-f.yield, nil
}

// Propagate re-raises a trapped outcome in the caller's context. Host code
// that drives an inner fiber from inside an outer guest entry calls this on
// the inner outcome, so a trap crosses every fiber boundary typed instead
// of being swallowed.
func Propagate(out Outcome) {
	if out.Trap != nil {
		panic(out.Trap)
	}
}
