// Package stateos implements the scheduling core of a preemptive
// real-time kernel: task states, a priority-ordered ready queue, the
// waiter-queue protocol shared by every synchronization primitive, a
// tick-driven timed-wait engine, and the single kernel lock that guards
// all of it.
//
// The synchronization primitives built on this core live in sibling
// packages: [github.com/EmreBlky/StateOS/signal], which implements a
// bitmask signal set, [github.com/EmreBlky/StateOS/jobqueue], a bounded
// ring of callables with execute-on-take semantics, and
// [github.com/EmreBlky/StateOS/list], an external-storage linked queue.
// A minimal [github.com/EmreBlky/StateOS/event] and
// [github.com/EmreBlky/StateOS/mutex] round out the set, built the same
// way, from the same waiter queue.
//
// Every operation here enters the kernel lock, attempts a non-blocking
// fast path, and either returns immediately or enlists the calling
// task's goroutine in a waiter queue and parks it. Interrupt-context
// callers should only ever use the non-blocking entry points (documented
// per-primitive as the "fast path");
// blocking from such a context is a precondition violation and trips an
// assertion, same as on the original hardware target.
package stateos
