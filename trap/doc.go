// Package trap converts hardware memory-protection faults and explicit
// guest violations into typed, recoverable trap records.
//
// # Fault interception
//
// Guest code runs inside an armed section (Enter). While armed, a fault on a
// page the runtime deliberately keeps inaccessible — a guard region beside a
// memory or table slot, or the overflow zone at the low end of a guest stack
// — surfaces as a runtime fault carrying the faulting address. The section
// classifies that address against a Registry of known ranges:
//
//   - inside a guard region of a memory or table slot → out-of-bounds trap
//   - inside a stack guard zone                       → stack-overflow trap
//   - anywhere else → fatal; the fault is re-raised and takes the process
//     down, because an unclassifiable wild fault means corruption of unknown
//     extent and continuing would be unsafe.
//
// Classification performs no allocation and reads only the registry, whose
// entries are published before a slot's index is handed out and removed
// before the index is reused.
//
// # Section state machine
//
// A Section moves Idle → Armed when guest code starts, then to Idle on
// normal return, Trapped on a classified trap, or Fatal on an
// unclassifiable fault.
//
// # Explicit traps and interrupts
//
// Raise reports violations the guest code detects itself (unreachable,
// table bounds checks). An Interruptor carries an external cancellation
// request to the next Checkpoint inside the guest, where it unwinds exactly
// like any other trap.
//
// Trap records are not errors: they are threaded as explicit typed results
// through the call boundary that entered guest execution.
package trap
