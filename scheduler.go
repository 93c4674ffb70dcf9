package stateos

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Scheduler is the kernel core: one ready queue, one notion of the
// currently-running task, and the timed-wait engine every primitive's
// waiter queue hangs off of. A Scheduler is safe for concurrent use;
// every exported method takes the kernel lock itself except the
// composable ones documented below.
//
// Go cannot forcibly pause an arbitrary running goroutine the way a
// hardware interrupt pauses a CPU core, so "current" here is a token,
// not a statement about which OS thread is executing. Every task's
// goroutine blocks on its own wake channel at every checkpoint (Yield,
// SleepFor/Until, Join, WaitFor, and its first run) until the scheduler
// grants it the token; a task that never reaches a checkpoint — an
// infinite loop with no blocking call — cannot be preempted by anything
// short of Stop, and even Stop can only request it stop at its next
// checkpoint. This is documented here once rather than on every method.
//
// Two tiers of method exist. Standalone methods (Start, Stop, Yield,
// SleepFor, SleepUntil, Join, Suspend, Resume, Tick) take the lock
// themselves. Composable methods (WaitFor, WakeOne, WakeAll,
// WakeMatching, DrainQueue, Reset, Destroy) assume the caller already
// holds it via Lock/Unlock — they exist so a primitive package can
// check and mutate its own state and the scheduler's waiter-queue state
// atomically, in one critical section, without a primitive ever needing
// a second, recursive lock.
type Scheduler struct {
	mu sync.Mutex

	clock    Clock
	logger   Logger
	onSwitch func()
	robin    bool

	ready   WaitQueue
	current *Task
	nextID  uint64
	tasks   []*Task

	timerHead, timerTail *Task
}

// New constructs a Scheduler. With no options it uses a [ManualClock]
// (tick 0, advanced only by explicit Tick calls) and discards logging —
// suitable for tests. Production callers will generally pass WithClock
// with a [WallClock] and drive it with RunClock.
func New(opts ...Option) *Scheduler {
	cfg := resolveOptions(opts)
	return &Scheduler{
		clock:    cfg.clock,
		logger:   cfg.logger,
		onSwitch: cfg.onSwitch,
		robin:    cfg.robin,
	}
}

// Lock acquires the kernel lock, for use by a primitive package that
// needs to call a composable method (WaitFor, WakeOne, WakeAll,
// WakeMatching, DrainQueue, Reset, Destroy) as part of a larger
// critical section over its own state.
func (s *Scheduler) Lock() { s.mu.Lock() }

// Unlock releases the kernel lock acquired by Lock.
func (s *Scheduler) Unlock() { s.mu.Unlock() }

// Now returns the scheduler's current tick, as reported by its clock.
func (s *Scheduler) Now() Tick { return s.clock.Now() }

func (s *Scheduler) log(level LogLevel, category, msg string, taskID uint64) {
	if !s.logger.IsEnabled(level) {
		return
	}
	s.logger.Log(LogEntry{Level: level, Category: category, TaskID: taskID, Message: msg, Timestamp: time.Now()})
}

// NewTask allocates a Task in the Dormant state. fn is the task's body,
// invoked on its own goroutine once Start grants it the CPU token for
// the first time; fn returning ends the task, waking any Joiners with
// E_SUCCESS.
func (s *Scheduler) NewTask(name string, priority int, fn func(*Task)) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := newTask(s, s.nextID, name, priority, fn)
	s.tasks = append(s.tasks, t)
	return t
}

// Tasks returns a snapshot, sorted by ID, of every task this Scheduler
// has ever created — a debug/status-dump surface, not something the
// kernel's own scheduling logic consults.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.tasks)
	slices.SortFunc(out, func(a, b *Task) int { return int(a.ID) - int(b.ID) })
	return out
}

// Start transitions a Dormant task to Ready and launches its goroutine.
// Starting a task that is not Dormant is a precondition violation.
func (s *Scheduler) Start(t *Task) {
	s.mu.Lock()
	Assertf(t.state == Dormant, "stateos: Start on non-dormant task %q (%s)", t.Name, t.state)
	t.state = Ready
	t.exited = false
	t.stopped = make(chan struct{})
	s.ready.insert(t)
	s.maybePreempt()
	s.log(LevelDebug, "scheduler", "task started", t.ID)
	s.mu.Unlock()
	go s.run(t)
}

// run is the goroutine body launched by Start: wait for the first grant
// of the CPU token (or for Stop to cancel the task before it ever gets
// one), run the task body, then record its exit. If Start already
// granted t the token (t is current and Running), there is nothing to
// wait for and the body starts at once.
func (s *Scheduler) run(t *Task) {
	s.mu.Lock()
	if s.current != t {
		s.checkpoint(t)
	}
	abandoned := t.state == Dormant
	s.mu.Unlock()
	if abandoned {
		return
	}
	t.fn(t)
	s.taskExit(t)
}

// checkpoint is the one place a task's goroutine actually parks. The
// caller must already have moved self out of Running (or never into it,
// for the initial Start handoff) and enlisted it wherever it belongs
// (ready queue, a waiter queue, nowhere for Dormant-via-Stop) before
// calling this. checkpoint returns once self has either been granted
// the CPU token (s.current == self) or been stopped (self.state ==
// Dormant); it must be called with the lock held, and returns with the
// lock held.
func (s *Scheduler) checkpoint(self *Task) {
	if s.current == self {
		s.current = nil
	}
	s.scheduleLocked()
	for s.current != self && self.state != Dormant {
		s.mu.Unlock()
		select {
		case <-self.wake:
		case <-self.stopped:
		}
		s.mu.Lock()
		s.scheduleLocked()
	}
}

// scheduleLocked grants the CPU token to the head of the ready queue if
// nobody currently holds it. Must be called with the lock held.
func (s *Scheduler) scheduleLocked() {
	if s.current != nil {
		return
	}
	next := s.ready.popHead()
	if next == nil {
		return
	}
	next.state = Running
	s.current = next
	next.wakeup()
}

// maybePreempt is called whenever a task newly becomes Ready. If nobody
// currently holds the CPU token it grants one immediately; otherwise,
// if the newly-ready task outranks the current holder, it invokes the
// context-switch hook (if any) so an embedder wired to a real
// interrupt-based preemption mechanism can act on it. The actual
// handoff in this port always happens lazily, at the current task's
// next checkpoint — see the Scheduler doc comment.
func (s *Scheduler) maybePreempt() {
	if s.current == nil {
		s.scheduleLocked()
		return
	}
	if !s.ready.empty() && s.ready.head.Priority > s.current.Priority && s.onSwitch != nil {
		s.onSwitch()
	}
}

// Stop forces t back to Dormant, canceling any wait it was enlisted in
// with E_STOPPED and waking its Joiners with E_SUCCESS. Stopping a task
// that is already Dormant is a no-op.
//
// If t is the currently-running task, Stop can only ask: it closes
// t.stopped and clears the CPU token, but t's goroutine is wherever
// Go's own scheduler happens to have it and only observes the request
// at its next checkpoint. This is the cooperative-preemption limitation
// documented on Scheduler; Stop on a task parked anywhere else (Ready,
// Blocked, Delayed, Suspended) takes effect immediately.
func (s *Scheduler) Stop(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state == Dormant {
		return
	}
	switch t.state {
	case Ready:
		s.ready.remove(t)
	case Blocked, Delayed:
		if t.inQueue != nil {
			t.inQueue.remove(t)
			t.inQueue = nil
		}
		if t.timed {
			s.removeTimer(t)
		}
	case Running:
		if s.current == t {
			s.current = nil
		}
	case Suspended:
	}
	t.state = Dormant
	t.scratch = Scratch{}
	t.outcome = E_STOPPED
	close(t.stopped)
	s.wakeJoiners(t, E_SUCCESS)
	s.scheduleLocked()
	s.log(LevelInfo, "scheduler", "task stopped", t.ID)
}

// taskExit records a task's natural return from its body and wakes its
// Joiners with E_SUCCESS.
func (s *Scheduler) taskExit(t *Task) {
	s.mu.Lock()
	t.state = Dormant
	t.exited = true
	if s.current == t {
		s.current = nil
	}
	s.wakeJoiners(t, E_SUCCESS)
	s.scheduleLocked()
	s.log(LevelDebug, "scheduler", "task exited", t.ID)
	s.mu.Unlock()
}

func (s *Scheduler) wakeJoiners(t *Task, outcome Outcome) {
	for {
		j := t.joiners.popHead()
		if j == nil {
			break
		}
		j.inQueue = nil
		if j.timed {
			s.removeTimer(j)
		}
		j.outcome = outcome
		j.state = Ready
		s.ready.insert(j)
	}
	s.maybePreempt()
}

// Yield gives up the remainder of t's time slice. With round-robin
// disabled (the default), or when no other Ready task shares t's
// priority, this is a no-op: strict priority scheduling has nothing
// else to offer t's band. t must be the currently-running task.
func (t *Task) Yield() {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	Assertf(s.current == t, "stateos: Yield called by non-running task %q", t.Name)
	if !s.robin || s.ready.empty() || s.ready.head.Priority != t.Priority {
		return
	}
	t.state = Ready
	s.ready.insert(t)
	s.checkpoint(t)
}

// SleepFor blocks the calling task for n ticks. Returns E_SUCCESS once
// the duration elapses, or E_STOPPED if the task was stopped while
// asleep. A duration of Immediate returns E_SUCCESS without blocking;
// a duration of Infinite parks the task Delayed with no deadline, so
// only Stop ends the sleep.
func (t *Task) SleepFor(n Tick) Outcome {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == Infinite {
		Assertf(s.current == t, "stateos: Sleep called by non-running task %q", t.Name)
		t.state = Delayed
		s.checkpoint(t)
		return E_STOPPED
	}
	return s.sleepUntilLocked(t, s.clock.Now()+n)
}

// SleepUntil blocks the calling task until the given absolute tick.
// A deadline that has already passed returns E_SUCCESS immediately.
func (t *Task) SleepUntil(deadline Tick) Outcome {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleepUntilLocked(t, deadline)
}

func (s *Scheduler) sleepUntilLocked(t *Task, deadline Tick) Outcome {
	Assertf(s.current == t, "stateos: Sleep called by non-running task %q", t.Name)
	if !TickBefore(s.clock.Now(), deadline) {
		return E_SUCCESS
	}
	t.state = Delayed
	s.addTimer(t, deadline)
	s.armNextDeadline()
	s.checkpoint(t)
	if t.state == Dormant {
		return E_STOPPED
	}
	// fireTimers stamps E_TIMEOUT on every deadline-driven wake, which is
	// the right outcome for a primitive's timed wait but is exactly the
	// success case for a plain sleep: the deadline is what t asked for.
	if t.outcome == E_TIMEOUT {
		return E_SUCCESS
	}
	return t.outcome
}

// Join blocks the calling task until target exits (its body returns, or
// it is Stopped), or until timeout ticks pass. Joining a task that has
// already exited returns E_SUCCESS immediately without blocking.
func (t *Task) Join(target *Task, timeout Tick) Outcome {
	s := t.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	Assertf(s.current == t, "stateos: Join called by non-running task %q", t.Name)
	if target.exited {
		return E_SUCCESS
	}
	if timeout == Immediate {
		return E_TIMEOUT
	}
	t.state = Blocked
	t.inQueue = &target.joiners
	target.joiners.insert(t)
	if timeout != Infinite {
		t.state = Delayed
		s.addTimer(t, s.clock.Now()+timeout)
		s.armNextDeadline()
	}
	s.checkpoint(t)
	if t.state == Dormant {
		return E_STOPPED
	}
	return t.outcome
}

// Suspend holds t off the ready queue until a matching Resume. Only
// Ready and Running tasks may be suspended; a task already enlisted in
// a primitive's waiter queue must be canceled (Stop) rather than
// suspended, since this port does not stack a suspended-while-blocked
// state. Suspending a Dormant or already-Suspended task is a no-op.
func (s *Scheduler) Suspend(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state == Dormant || t.state == Suspended {
		return
	}
	Assertf(t.state == Ready || t.state == Running, "stateos: Suspend does not support state %s", t.state)
	if t.state == Ready {
		s.ready.remove(t)
	} else if s.current == t {
		s.current = nil
	}
	t.state = Suspended
	s.scheduleLocked()
}

// Resume returns a Suspended task to Ready. Resuming a task that is not
// Suspended is a no-op.
func (s *Scheduler) Resume(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != Suspended {
		return
	}
	t.state = Ready
	s.ready.insert(t)
	s.maybePreempt()
}

// WaitFor enlists self in q and parks until woken by WakeOne/WakeAll/
// WakeMatching (E_SUCCESS), DrainQueue with a chosen outcome (a
// primitive's own Reset/Destroy), Stop (E_STOPPED), or timeout ticks
// elapse (E_TIMEOUT). scratch is stashed on self for the waker to read
// or overwrite before waking it — the hand-off slot primitives use for
// direct producer/consumer transfer. timeout of Immediate returns
// E_TIMEOUT without blocking; Infinite waits with no deadline.
//
// WaitFor is composable: the caller must already hold the lock (see
// Lock/Unlock), must already have checked its own Header's liveness
// (Header.CheckAlive), and self must be the currently-running task.
func (s *Scheduler) WaitFor(self *Task, q *WaitQueue, scratch Scratch, timeout Tick) Outcome {
	Assertf(s.current == self, "stateos: WaitFor called by non-running task %q", self.Name)
	if timeout == Immediate {
		return E_TIMEOUT
	}
	self.scratch = scratch
	self.state = Blocked
	self.inQueue = q
	q.insert(self)
	if timeout != Infinite {
		self.state = Delayed
		s.addTimer(self, s.clock.Now()+timeout)
		s.armNextDeadline()
	}
	s.checkpoint(self)
	if self.state == Dormant {
		return E_STOPPED
	}
	// self.scratch is deliberately left as whatever the waker put there
	// (WakeMatching's onWake may have stamped a delivered value into it)
	// rather than cleared here: only the primitive that enlisted self
	// knows whether there is anything in it worth reading.
	return self.outcome
}

// WakeOne pops the highest-priority (longest-waiting, among equals)
// task off q, marks it E_SUCCESS, and moves it to Ready. It returns the
// woken task (its Scratch is left untouched, so a caller can write a
// hand-off payload into it immediately before or after calling WakeOne)
// or nil if q had no waiters. Composable: lock held, self not required.
func (s *Scheduler) WakeOne(q *WaitQueue) *Task {
	t := q.popHead()
	if t == nil {
		return nil
	}
	t.inQueue = nil
	if t.timed {
		s.removeTimer(t)
	}
	t.outcome = E_SUCCESS
	t.state = Ready
	s.ready.insert(t)
	s.maybePreempt()
	return t
}

// WakeAll wakes every waiter on q with E_SUCCESS, returning the count
// woken. Composable.
func (s *Scheduler) WakeAll(q *WaitQueue) int {
	return s.DrainQueue(q, E_SUCCESS)
}

// WakeMatching walks q from head to tail, waking every task for which
// match(task's stashed Scratch) reports true. Before each matched task
// is moved to Ready, onWake (if non-nil) is called so the caller can
// overwrite its Scratch with the delivered payload or result — this is
// how signal.Set.Give stamps the delivered signal number onto the
// specific waiter being woken, which a
// plain WakeOne cannot do since it always takes the head regardless of
// content. If firstOnly is true, stops after the first match (the
// non-sticky signal semantics); otherwise every match in the queue is
// woken (sticky broadcast). Returns the number woken. Composable.
func (s *Scheduler) WakeMatching(q *WaitQueue, match func(Scratch) bool, onWake func(*Task), firstOnly bool) int {
	n := 0
	cur := q.head
	for cur != nil {
		next := cur.next
		if match(cur.scratch) {
			q.remove(cur)
			if cur.timed {
				s.removeTimer(cur)
			}
			cur.inQueue = nil
			if onWake != nil {
				onWake(cur)
			}
			cur.outcome = E_SUCCESS
			cur.state = Ready
			s.ready.insert(cur)
			n++
			if firstOnly {
				break
			}
		}
		cur = next
	}
	if n > 0 {
		s.maybePreempt()
	}
	return n
}

// DrainQueue wakes every waiter on q with the given outcome, returning
// the count woken. It is the building block behind WakeAll (outcome
// E_SUCCESS) and every primitive's own Reset (E_STOPPED) and Destroy
// (E_DELETED); a primitive with more than one WaitQueue (the job queue)
// calls this once per queue. Composable.
func (s *Scheduler) DrainQueue(q *WaitQueue, outcome Outcome) int {
	n := 0
	for {
		t := q.popHead()
		if t == nil {
			break
		}
		t.inQueue = nil
		if t.timed {
			s.removeTimer(t)
		}
		t.scratch = Scratch{}
		t.outcome = outcome
		t.state = Ready
		s.ready.insert(t)
		n++
	}
	s.maybePreempt()
	return n
}

// Reset wakes every waiter on h's queue with E_STOPPED without
// releasing h — the "object was reset while a caller waited" case. For
// a single-queue primitive (signal, list, event, mutex); the job queue
// resets its two queues itself via DrainQueue. Composable.
func (s *Scheduler) Reset(h *Header) int {
	return s.DrainQueue(&h.Waiters, E_STOPPED)
}

// Destroy wakes every waiter on h's queue with E_DELETED and marks h
// released, returning memory to its allocator if it was dynamically
// constructed. For a single-queue primitive; the job queue destroys
// itself via DrainQueue on each queue plus Header.Release. Composable.
func (s *Scheduler) Destroy(h *Header) int {
	n := s.DrainQueue(&h.Waiters, E_DELETED)
	h.Release()
	return n
}

// addTimer enlists t in the deadline list, in insertion order. The list
// is intentionally unsorted: tasks with coincident deadlines must fire
// in the order they started waiting, which a plain append preserves for
// free, and the kernel's task counts never justify a sorted structure's
// added complexity.
func (s *Scheduler) addTimer(t *Task, deadline Tick) {
	t.deadline = deadline
	t.timed = true
	t.timerNext = nil
	if s.timerTail == nil {
		s.timerHead, s.timerTail = t, t
		return
	}
	s.timerTail.timerNext = t
	s.timerTail = t
}

// removeTimer detaches t from the deadline list if it is in it.
func (s *Scheduler) removeTimer(t *Task) {
	if !t.timed {
		return
	}
	t.timed = false
	var prev *Task
	for cur := s.timerHead; cur != nil; cur = cur.timerNext {
		if cur == t {
			if prev == nil {
				s.timerHead = cur.timerNext
			} else {
				prev.timerNext = cur.timerNext
			}
			if s.timerTail == cur {
				s.timerTail = prev
			}
			cur.timerNext = nil
			return
		}
		prev = cur
	}
}

// fireTimers moves every task whose deadline has arrived back to Ready
// with E_TIMEOUT, detaching it from whatever waiter queue it was also
// enlisted in. Must be called with the lock held.
func (s *Scheduler) fireTimers(now Tick) {
	var due []*Task
	for cur := s.timerHead; cur != nil; cur = cur.timerNext {
		if !TickBefore(now, cur.deadline) {
			due = append(due, cur)
		}
	}
	for _, t := range due {
		s.removeTimer(t)
		if t.inQueue != nil {
			t.inQueue.remove(t)
			t.inQueue = nil
		}
		t.scratch = Scratch{}
		t.outcome = E_TIMEOUT
		t.state = Ready
		s.ready.insert(t)
	}
	if len(due) > 0 {
		s.maybePreempt()
	}
	s.armNextDeadline()
}

// armNextDeadline tells the clock about the earliest outstanding
// deadline, or Infinite if there is none.
func (s *Scheduler) armNextDeadline() {
	if s.timerHead == nil {
		s.clock.Arm(Infinite)
		return
	}
	earliest := s.timerHead.deadline
	for cur := s.timerHead.timerNext; cur != nil; cur = cur.timerNext {
		if TickBefore(cur.deadline, earliest) {
			earliest = cur.deadline
		}
	}
	s.clock.Arm(earliest)
}

// Tick advances the kernel's view of time to the clock's current
// reading and fires any deadlines that have arrived. Callers driving a
// [ManualClock] call this after each Advance; [RunClock] calls it on
// every tick of a [WallClock].
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fireTimers(s.clock.Now())
}

// RunClock starts a goroutine that calls Tick once per wc's period
// until ctx is canceled. It is the production bridge between a
// [WallClock] and the scheduler; tests driving a [ManualClock] should
// call Tick directly instead.
func (s *Scheduler) RunClock(ctx context.Context, wc *WallClock) {
	go func() {
		ticker := time.NewTicker(wc.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}
