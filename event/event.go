package event

import (
	stateos "github.com/EmreBlky/StateOS"
)

// Mode selects an Event's reset discipline.
type Mode uint8

const (
	// AutoReset clears the signaled condition the instant it wakes (or
	// is consumed by) a single waiter — a binary semaphore's behavior.
	AutoReset Mode = iota
	// ManualReset leaves the signaled condition set, waking every
	// current and future waiter, until Clear is called explicitly.
	ManualReset
)

// Event is an auto-reset or manual-reset condition flag.
type Event struct {
	stateos.Header
	sched    *stateos.Scheduler
	mode     Mode
	signaled bool
}

// New constructs a statically-stored Event in the unsignaled state.
func New(sched *stateos.Scheduler, mode Mode) *Event {
	return &Event{Header: stateos.NewStaticHeader(), sched: sched, mode: mode}
}

// NewDynamic carves an Event out of alloc's arena.
func NewDynamic(sched *stateos.Scheduler, alloc *stateos.Allocator, mode Mode) (*Event, bool) {
	h, ok := stateos.NewDynamicHeader(alloc, 1)
	if !ok {
		return nil, false
	}
	return &Event{Header: h, sched: sched, mode: mode}, true
}

// Signaled reports the event's current condition.
func (e *Event) Signaled() bool {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	return e.signaled
}

// Wait blocks self until the event is signaled, timeout ticks pass, or
// the event is reset/destroyed. If already signaled, returns
// E_SUCCESS immediately — consuming the condition for AutoReset.
func (e *Event) Wait(self *stateos.Task, timeout stateos.Tick) stateos.Outcome {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	if e.signaled {
		if e.mode == AutoReset {
			e.signaled = false
		}
		return stateos.E_SUCCESS
	}
	if timeout == stateos.Immediate {
		return stateos.E_TIMEOUT
	}
	return e.sched.WaitFor(self, &e.Header.Waiters, stateos.Scratch{}, timeout)
}

// WaitUntil is Wait with an absolute deadline.
func (e *Event) WaitUntil(self *stateos.Task, deadline stateos.Tick) stateos.Outcome {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	if e.signaled {
		if e.mode == AutoReset {
			e.signaled = false
		}
		return stateos.E_SUCCESS
	}
	now := e.sched.Now()
	if !stateos.TickBefore(now, deadline) {
		return stateos.E_TIMEOUT
	}
	return e.sched.WaitFor(self, &e.Header.Waiters, stateos.Scratch{}, deadline-now)
}

// Signal raises the event. AutoReset wakes exactly one waiter (the
// longest-waiting) and leaves the condition unsignaled for anyone
// arriving afterward; with no waiter present, the condition is left
// set for the next Wait to consume. ManualReset wakes every current
// waiter and leaves the condition set until Clear.
func (e *Event) Signal() {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	if e.mode == AutoReset {
		if e.sched.WakeOne(&e.Header.Waiters) != nil {
			return
		}
		e.signaled = true
		return
	}
	e.signaled = true
	e.sched.WakeAll(&e.Header.Waiters)
}

// Clear unconditionally clears the signaled condition, without waking
// or otherwise affecting any waiter.
func (e *Event) Clear() {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	e.signaled = false
}

// Reset wakes every waiter with E_STOPPED, leaving the event usable.
func (e *Event) Reset() int {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	return e.sched.Reset(&e.Header)
}

// Destroy wakes every waiter with E_DELETED and releases the event.
func (e *Event) Destroy() int {
	e.sched.Lock()
	defer e.sched.Unlock()
	e.CheckAlive()
	return e.sched.Destroy(&e.Header)
}
