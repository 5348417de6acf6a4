package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/isolate/fiber"
	"github.com/wippyai/isolate/trap"
)

// GuestFunc is the body of one guest entry. It runs with fault interception
// armed: guard faults, arithmetic faults and explicit raises unwind it and
// surface as the Result's Trap.
type GuestFunc func(ctx *GuestContext) any

// GuestContext is what a guest entry sees: its instance's resources, the
// interrupt checkpoint, and (on the async path) the suspension point.
type GuestContext struct {
	inst *Instance
	fib  *fiber.Fiber
}

// Memory returns linear memory idx.
func (c *GuestContext) Memory(idx int) *GuestMemory {
	return c.inst.Memory(idx)
}

// Instance returns the executing instance.
func (c *GuestContext) Instance() *Instance {
	return c.inst
}

// Checkpoint is a safe point: a pending Interrupt unwinds here as a trap.
// Guest loops call it periodically.
func (c *GuestContext) Checkpoint() {
	c.inst.intr.Checkpoint()
}

// Suspend yields control to the resumer with v and blocks until resumed.
// Only valid on the async path (StartCall); a synchronous entry that calls
// Suspend trips an unreachable trap.
func (c *GuestContext) Suspend(v any) any {
	if c.fib == nil {
		trap.Raise(trap.Unreachable)
	}
	return c.fib.Suspend(v)
}

// Result is the outcome of one guest entry: a value, or a typed trap with
// all guest-side state unwound. Traps are results, not errors — the host
// decides whether a trapped instance is torn down or re-entered.
type Result struct {
	Value any
	Trap  *trap.Record
}

// EnterGuest runs fn as guest code on the caller's goroutine and returns
// its result or the trap that unwound it. The host process survives every
// classified trap; unclassifiable faults crash by design.
func (i *Instance) EnterGuest(fn GuestFunc) Result {
	ctx := &GuestContext{inst: i}
	var value any

	var section trap.Section
	rec := section.Enter(i.module.rt.pool.Registry(), func() {
		value = fn(ctx)
	})
	if rec != nil {
		i.module.rt.pool.CountTrap(rec.Code)
		i.module.rt.log.Debug("guest trapped",
			zap.String("module", i.module.desc.Name),
			zap.String("trap", rec.String()),
		)
		return Result{Trap: rec}
	}
	return Result{Value: value}
}

// CallSession is one in-flight asynchronous guest call. The guest side runs
// on a fiber; the host resumes it step by step.
type CallSession struct {
	inst *Instance
	fib  *fiber.Fiber
}

// StartCall begins fn on a fiber and runs it to its first suspension or to
// completion. The returned outcome is the first step: Done with a value or
// trap, or a yielded value with the session suspended.
func (i *Instance) StartCall(fn GuestFunc) (*CallSession, fiber.Outcome) {
	reg := i.module.rt.pool.Registry()

	fib, out := fiber.Start(reg, func(f *fiber.Fiber, _ any) any {
		return fn(&GuestContext{inst: i, fib: f})
	}, nil)

	if out.Trap != nil {
		i.module.rt.pool.CountTrap(out.Trap.Code)
	}
	return &CallSession{inst: i, fib: fib}, out
}

// Resume continues a suspended session with v.
func (s *CallSession) Resume(v any) (fiber.Outcome, error) {
	out, err := s.fib.Resume(v)
	if err != nil {
		return out, err
	}
	if out.Trap != nil {
		s.inst.module.rt.pool.CountTrap(out.Trap.Code)
	}
	return out, nil
}

// Status reports the underlying fiber's phase.
func (s *CallSession) Status() fiber.Status {
	return s.fib.Status()
}

// Interrupt requests cancellation of the session's instance; the guest
// unwinds with an Interrupt trap at its next checkpoint after resumption.
func (s *CallSession) Interrupt() {
	s.inst.Interrupt()
}
