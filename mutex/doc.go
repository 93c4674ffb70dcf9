// Package mutex implements a minimal owner-tracked exclusive lock, one
// of the kernel's supplemented primitives beyond its distilled core.
// It is built directly from the waiter-queue/scheduler core: at most
// one task owns the mutex at a time, release hands ownership directly
// to the longest-waiting blocked task (single-hop — no priority
// inheritance chain of any kind is implemented).
package mutex
