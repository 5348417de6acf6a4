package trap

// Code identifies the kind of violation a trap reports.
type Code uint8

const (
	// MemoryOutOfBounds is a linear-memory access past the committed size.
	MemoryOutOfBounds Code = iota
	// TableOutOfBounds is a table element access past the table's bounds.
	TableOutOfBounds
	// IntegerDivideByZero is an integer division or remainder by zero.
	IntegerDivideByZero
	// IntegerOverflow is an integer result that cannot be represented,
	// such as dividing the minimum value by minus one.
	IntegerOverflow
	// Unreachable is an unreachable-code marker reached at runtime.
	Unreachable
	// StackOverflow is exhaustion of the guest's allotted stack region.
	StackOverflow
	// Interrupt is an external cancellation request delivered at a
	// checkpoint.
	Interrupt
)

func (c Code) String() string {
	switch c {
	case MemoryOutOfBounds:
		return "out of bounds memory access"
	case TableOutOfBounds:
		return "out of bounds table access"
	case IntegerDivideByZero:
		return "integer divide by zero"
	case IntegerOverflow:
		return "integer overflow"
	case Unreachable:
		return "unreachable code reached"
	case StackOverflow:
		return "stack overflow"
	case Interrupt:
		return "interrupted"
	default:
		return "unknown trap"
	}
}
