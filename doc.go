// Package isolate provides pooled, guard-paged execution memory for a
// sandboxed bytecode runtime.
//
// The library owns the instance allocation and fault-safety layer of the
// runtime: it hands out reusable virtual-memory slots for instance memories,
// tables and stacks, seeds linear memory from shared copy-on-write images,
// and converts out-of-bounds accesses and stack exhaustion into typed,
// recoverable traps instead of host crashes.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	isolate/          Root package with module descriptions and the Memory interface
//	├── runtime/      High-level API: Runtime, Module, Instance, guest entry
//	├── pool/         Pooling instance allocator and slot index allocator
//	├── vmem/         Virtual memory regions: reserve, commit, protect, decommit
//	├── cow/          Copy-on-write memory images for initial linear memory
//	├── trap/         Typed traps and hardware fault classification
//	├── fiber/        Suspendable guest calls for async host functions
//	├── engine/       wazero integration: pool-backed linear memory
//	└── errors/       Structured error types for debugging
//
// # Quick Start
//
// Construct a runtime with a pool, compile a module description, and
// instantiate:
//
//	rt, err := runtime.New(pool.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	mod, err := rt.CompileModule(desc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate()
//	if err != nil {
//	    log.Fatal(err) // pool exhaustion surfaces here, recoverable
//	}
//	defer inst.Close()
//
//	res := inst.EnterGuest(func(ctx *runtime.GuestContext) any { ... })
//	if res.Trap != nil {
//	    // typed trap: out-of-bounds, stack overflow, interrupt, ...
//	}
//
// # Isolation Model
//
// Every slot in a pool is separated from its neighbors by guard regions that
// are never mapped readable or writable. A guest access that strays past its
// memory's committed bounds faults on a guard page and is reported as a trap
// to the frame that entered guest execution; it can never read or write
// another instance's slot. Released slots are decommitted and re-protected
// before reuse, so a new tenant never observes a previous tenant's bytes.
//
// # Thread Safety
//
// Runtime, Module and Pool are safe for concurrent use; instantiation may be
// called from multiple goroutines. Instance is NOT thread-safe and should be
// driven by a single goroutine at a time.
package isolate
