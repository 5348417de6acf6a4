// Package fiber provides suspendable guest calls: an execution that can
// hand control back to its resumer mid-flight and later continue exactly
// where it stopped, with traps propagating across the switch.
//
// A Fiber is an explicit state machine (Initial, Suspended, Running, Done),
// not a scheduling primitive: suspension points exist only where the entry
// function calls Suspend, and cancellation arrives as a trap like anywhere
// else in guest execution. Exactly one side runs at a time; the handoff is
// a synchronous exchange, so a fiber never migrates between resumptions in
// a way its chain can observe.
//
// The entry function runs inside an armed trap section. A trap raised while
// the fiber is Running does not die at the fiber boundary: it finishes the
// fiber as Done with the trap attached, and Propagate lets a nested resumer
// re-raise it so host code that re-enters guest code through stacked fibers
// still observes the typed trap at the outermost entry.
package fiber
