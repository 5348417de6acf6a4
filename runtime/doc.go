// Package runtime provides the host-facing API over the pooling allocator:
// compile a module description, instantiate it into pooled slots, enter
// guest execution, and tear it down.
//
// # Quick Start
//
//	rt, err := runtime.New(pool.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	mod, err := rt.CompileModule(desc)
//	if err != nil {
//	    log.Fatal(err) // configuration error: limits exceed the pool
//	}
//	defer mod.Close()
//
//	inst, err := mod.Instantiate()
//	if err != nil {
//	    // errors.IsResourceExhausted(err): pool full, retry or reject
//	}
//	defer inst.Close()
//
//	res := inst.EnterGuest(func(ctx *runtime.GuestContext) any {
//	    mem := ctx.Memory(0)
//	    ...
//	    return nil
//	})
//	if res.Trap != nil {
//	    // typed trap, host is intact; instantiate again freely
//	}
//
// # Failure surfaces
//
// CompileModule rejects limits the pool cannot honor (a configuration
// error, see errors.IsConfiguration).
// Instantiate returns a recoverable resource-exhausted error when a class
// is at capacity. EnterGuest never returns an error for guest misbehavior:
// out-of-bounds accesses, stack overflow, division faults, unreachable code
// and interrupts come back as a typed Trap in the Result, with all guest
// state unwound. Host environment failures (mapping errors) are fatal
// errors, distinct from all of the above.
//
// # Async calls
//
// StartCall runs the guest function on a fiber so host functions can
// suspend guest execution, perform asynchronous work, and resume. The
// suspension is invisible to guest semantics.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use; Instantiate may be called
// from many goroutines. Instance is NOT thread-safe — one goroutine drives
// it at a time (Interrupt is the exception: safe from anywhere).
package runtime
