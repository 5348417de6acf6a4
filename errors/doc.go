// Package errors provides structured error types for the isolate library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Kind separates the recoverable conditions a caller is
// expected to handle (KindResourceExhausted, KindConfiguration) from the
// fatal ones it is not (KindFatalMapping, KindDoubleFree).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAcquire, errors.KindResourceExhausted).
//		Class("memories").
//		Detail("pool at capacity").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ResourceExhausted(errors.PhaseAcquire, "memories", 64)
//	err := errors.Configuration("declared maximum %d pages exceeds slot size", maxPages)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree, and the
// IsResourceExhausted/IsConfiguration/IsFatal helpers classify a chain
// without constructing a prototype.
//
// Guest traps are deliberately NOT errors in this taxonomy: a trap is a typed
// result of entering guest code (see the trap package) and is threaded
// explicitly through the call boundary rather than through error chains.
package errors
