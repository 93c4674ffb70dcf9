package stateos

// State is a task's position in its lifecycle.
type State uint32

const (
	// Dormant: constructed but not started, or stopped.
	Dormant State = iota
	// Ready: runnable, sitting in the scheduler's ready queue.
	Ready
	// Running: currently holding the scheduler's "current" slot.
	Running
	// Blocked: enlisted in some primitive's waiter queue, no deadline.
	Blocked
	// Delayed: enlisted in some primitive's waiter queue with a deadline,
	// or sleeping with no queue at all.
	Delayed
	// Suspended: held off the ready queue by an explicit Suspend call.
	Suspended
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Dormant:
		return "Dormant"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Delayed:
		return "Delayed"
	case Suspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// dead reports the source kernel's dead(t) predicate: true iff t is
// Dormant.
func (s State) dead() bool { return s == Dormant }

// Task is a schedulable unit of execution: identity, priority, current
// state, and the small set of intrusive links the scheduler and waiter
// queues need to keep it in exactly one queue at a time, with zero
// allocation on the hot path.
type Task struct {
	ID       uint64
	Name     string
	Priority int

	sched *Scheduler
	fn    func(*Task)

	state State

	// next threads this task through exactly one of: the scheduler's
	// ready queue, or a primitive's waiter queue. A task is never in
	// both at once.
	next *Task

	// timerNext threads this task through the scheduler's deadline list,
	// independent of next, since a timed waiter is in both a waiter
	// queue and the timer list simultaneously.
	timerNext *Task
	deadline  Tick
	timed     bool

	// inQueue points at whichever WaitQueue this task is currently
	// enlisted in (a primitive's waiter queue, or another task's
	// joiners) so Stop can detach it without knowing which primitive it
	// was waiting on. Nil whenever the task is not enlisted anywhere
	// (Ready, Running, Dormant, Suspended).
	inQueue *WaitQueue

	scratch Scratch
	outcome Outcome

	wake    chan struct{}
	stopped chan struct{}

	joiners WaitQueue
	exited  bool
}

// newTask allocates the goroutine-backed bookkeeping for a task. Called
// only by Scheduler.NewTask.
func newTask(sched *Scheduler, id uint64, name string, priority int, fn func(*Task)) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Priority: priority,
		sched:    sched,
		fn:       fn,
		state:    Dormant,
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// wakeup signals the task's parked goroutine to resume, non-blocking:
// the channel is buffered 1 and the kernel lock guarantees only one
// waker ever pops a given task out of a waiter queue, so a stray extra
// send can never happen for the same block/wake cycle.
func (t *Task) wakeup() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// State returns the task's current state. Safe to call from any
// goroutine; the scheduler's lock protects all writes.
func (t *Task) State() State {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

// Scratch returns the task's current hand-off slot. Must be called with
// the scheduler's lock held — primitive packages call it from within
// their own Lock/Unlock bracket, immediately after a composable wait or
// wake call, to read or deliver a payload.
func (t *Task) Scratch() Scratch { return t.scratch }

// SetScratch overwrites the task's hand-off slot. Must be called with
// the scheduler's lock held. This is how a waker (WakeMatching's onWake
// callback, or a producer handing a job directly to a parked consumer)
// stamps a delivered value onto a specific waiter.
func (t *Task) SetScratch(s Scratch) { t.scratch = s }
