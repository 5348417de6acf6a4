package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // pool configuration validation
	PhaseReserve     Phase = "reserve"     // address-space reservation
	PhaseCommit      Phase = "commit"      // committing or protecting pages
	PhaseImage       Phase = "image"       // building a memory image
	PhaseCompile     Phase = "compile"     // module description validation
	PhaseAcquire     Phase = "acquire"     // claiming a pool slot
	PhaseInstantiate Phase = "instantiate" // binding slots to an instance
	PhaseExecute     Phase = "execute"     // guest execution
	PhaseRelease     Phase = "release"     // returning a slot to the pool
)

// Kind categorizes the error
type Kind string

const (
	KindResourceExhausted Kind = "resource_exhausted" // pool at capacity, recoverable
	KindConfiguration     Kind = "configuration"      // limits exceed configured pool, rejected at load
	KindFatalMapping      Kind = "fatal_mapping"      // OS mapping/reservation failure, host environment fault
	KindDoubleFree        Kind = "double_free"        // index freed while not held, programming error
	KindInvalidInput      Kind = "invalid_input"
	KindOutOfBounds       Kind = "out_of_bounds" // host-side accessor outside guest memory
	KindUnsupported       Kind = "unsupported"
	KindClosed            Kind = "closed" // operation on a released object
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Class  string // resource class: "memories", "tables", "stacks", "instances"
	Detail string
	Index  int    // slot index, -1 when not applicable
	Size   uint64 // byte size involved, 0 when not applicable
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Class != "" {
		b.WriteString(" class=")
		b.WriteString(e.Class)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " slot=%d", e.Index)
	}
	if e.Size > 0 {
		fmt.Fprintf(&b, " size=%d", e.Size)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsResourceExhausted reports whether err is a recoverable pool-exhaustion
// condition, anywhere in its chain.
func IsResourceExhausted(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindResourceExhausted
}

// IsConfiguration reports whether err is a configuration rejection.
func IsConfiguration(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == KindConfiguration
}

// IsFatal reports whether err indicates host environment failure: the caller
// must stop using the affected pool rather than retry.
func IsFatal(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && (e.Kind == KindFatalMapping || e.Kind == KindDoubleFree)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
			Index: -1,
		},
	}
}

// Class sets the resource class name
func (b *Builder) Class(class string) *Builder {
	b.err.Class = class
	return b
}

// Index sets the slot index
func (b *Builder) Index(index int) *Builder {
	b.err.Index = index
	return b
}

// Size sets the byte size involved
func (b *Builder) Size(size uint64) *Builder {
	b.err.Size = size
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ResourceExhausted reports a pool at capacity. Recoverable: the caller
// decides whether to queue, back off or reject.
func ResourceExhausted(phase Phase, class string, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindResourceExhausted,
		Class:  class,
		Index:  -1,
		Detail: fmt.Sprintf("all %d slots allocated", capacity),
	}
}

// Configuration reports module limits that exceed the configured pool
// geometry. Raised at load time, never at fault time.
func Configuration(format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindConfiguration,
		Index:  -1,
		Detail: fmt.Sprintf(format, args...),
	}
}

// FatalMapping reports an OS-level mapping or reservation failure. The host
// environment, not pool pressure, is at fault; the pool should not be reused.
func FatalMapping(phase Phase, cause error, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFatalMapping,
		Cause:  cause,
		Index:  -1,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// DoubleFree reports a free of an index that is not currently held. This is
// a programming error in the caller, reported rather than silently ignored,
// since it would indicate a slot double-free.
func DoubleFree(class string, index int) *Error {
	return &Error{
		Phase:  PhaseRelease,
		Kind:   KindDoubleFree,
		Class:  class,
		Index:  index,
		Detail: "index is not currently allocated",
	}
}

// OutOfBounds reports a host-side access outside a guest memory's current
// size. Guest-side accesses never produce this: they fault on the guard and
// trap instead.
func OutOfBounds(offset, length, size uint64) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindOutOfBounds,
		Index:  -1,
		Detail: fmt.Sprintf("access %d+%d outside memory of %d bytes", offset, length, size),
	}
}

// InvalidInput reports a caller-supplied argument outside the valid domain.
func InvalidInput(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Index:  -1,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Closed reports use of a pool, region or image after release.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Index:  -1,
		Detail: what + " is closed",
	}
}

// Wrap wraps an error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Cause:  cause,
		Index:  -1,
		Detail: detail,
	}
}
