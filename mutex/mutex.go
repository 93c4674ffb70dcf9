package mutex

import (
	stateos "github.com/EmreBlky/StateOS"
)

// Mutex is an exclusive lock with a tracked owner. Unlock by a task
// other than the current owner is a precondition violation.
type Mutex struct {
	stateos.Header
	sched *stateos.Scheduler
	owner *stateos.Task
}

// New constructs a statically-stored, initially-unowned Mutex.
func New(sched *stateos.Scheduler) *Mutex {
	return &Mutex{Header: stateos.NewStaticHeader(), sched: sched}
}

// NewDynamic carves a Mutex out of alloc's arena.
func NewDynamic(sched *stateos.Scheduler, alloc *stateos.Allocator) (*Mutex, bool) {
	h, ok := stateos.NewDynamicHeader(alloc, 1)
	if !ok {
		return nil, false
	}
	return &Mutex{Header: h, sched: sched}, true
}

// Owner returns the task currently holding the lock, or nil.
func (m *Mutex) Owner() *stateos.Task {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	return m.owner
}

// TryLock is the non-blocking fast path: acquires the lock and returns
// E_SUCCESS if unowned, or E_TIMEOUT without blocking if it is held.
// Relocking by the current owner is a precondition violation — this
// port carries no recursion count.
func (m *Mutex) TryLock(self *stateos.Task) stateos.Outcome {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	return m.tryLockLocked(self)
}

func (m *Mutex) tryLockLocked(self *stateos.Task) stateos.Outcome {
	stateos.Assertf(m.owner != self, "mutex: TryLock: task %q already owns this mutex", self.Name)
	if m.owner != nil {
		return stateos.E_TIMEOUT
	}
	m.owner = self
	return stateos.E_SUCCESS
}

// Lock blocks self until the mutex is acquired, timeout ticks pass, or
// the mutex is reset/destroyed.
func (m *Mutex) Lock(self *stateos.Task, timeout stateos.Tick) stateos.Outcome {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	if outcome := m.tryLockLocked(self); outcome == stateos.E_SUCCESS {
		return outcome
	}
	if timeout == stateos.Immediate {
		return stateos.E_TIMEOUT
	}
	outcome := m.sched.WaitFor(self, &m.Header.Waiters, stateos.Scratch{}, timeout)
	if outcome == stateos.E_SUCCESS {
		m.owner = self
	}
	return outcome
}

// LockUntil is Lock with an absolute deadline.
func (m *Mutex) LockUntil(self *stateos.Task, deadline stateos.Tick) stateos.Outcome {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	if outcome := m.tryLockLocked(self); outcome == stateos.E_SUCCESS {
		return outcome
	}
	now := m.sched.Now()
	if !stateos.TickBefore(now, deadline) {
		return stateos.E_TIMEOUT
	}
	outcome := m.sched.WaitFor(self, &m.Header.Waiters, stateos.Scratch{}, deadline-now)
	if outcome == stateos.E_SUCCESS {
		m.owner = self
	}
	return outcome
}

// Unlock releases the mutex, handing ownership directly to the
// longest-waiting blocked task (if any) rather than leaving it unowned
// for whichever task next calls Lock/TryLock — the same single-hop
// handoff the job queue and list primitives use, applied to ownership
// transfer instead of a payload. self must be the current owner.
func (m *Mutex) Unlock(self *stateos.Task) {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	stateos.Assertf(m.owner == self, "mutex: Unlock: task %q does not own this mutex", self.Name)
	if next := m.sched.WakeOne(&m.Header.Waiters); next != nil {
		m.owner = next
		return
	}
	m.owner = nil
}

// Reset wakes every waiter with E_STOPPED and clears ownership,
// leaving the mutex usable.
func (m *Mutex) Reset() int {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	m.owner = nil
	return m.sched.Reset(&m.Header)
}

// Destroy wakes every waiter with E_DELETED and releases the mutex.
func (m *Mutex) Destroy() int {
	m.sched.Lock()
	defer m.sched.Unlock()
	m.CheckAlive()
	m.owner = nil
	return m.sched.Destroy(&m.Header)
}
