// Package event implements a minimal event flag beyond the kernel's
// core primitives: a single boolean condition a task can Wait on and
// another can Signal, in both auto-reset (wakes and consumes one
// waiter, like a binary semaphore) and manual-reset (stays signaled for
// every waiter until explicitly Cleared, like a Win32 manual-reset
// event) flavors. It is built directly from the waiter-queue/scheduler
// core, mirroring the original StateOS kernel's osevent.h.
package event
