package trap

import "sync/atomic"

// Interruptor carries an external stop request into running guest code. The
// requesting side calls Interrupt from any goroutine; the guest observes it
// at its next Checkpoint, which unwinds with an Interrupt trap exactly like
// any other trap.
type Interruptor struct {
	flag atomic.Bool
}

// Interrupt requests cancellation of the execution driving this
// interruptor. Idempotent; safe from any goroutine.
func (i *Interruptor) Interrupt() {
	i.flag.Store(true)
}

// Interrupted reports whether a request is pending, without consuming it.
func (i *Interruptor) Interrupted() bool {
	return i.flag.Load()
}

// Checkpoint is called from guest code at safe points. If an interrupt is
// pending it is consumed and the execution unwinds with an Interrupt trap.
func (i *Interruptor) Checkpoint() {
	if i.flag.Swap(false) {
		Raise(Interrupt)
	}
}
