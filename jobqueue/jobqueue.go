package jobqueue

import (
	stateos "github.com/EmreBlky/StateOS"
	"github.com/EmreBlky/StateOS/internal/ring"
)

// Job is an opaque callable handle: uniform representation, no payload
// size of its own.
type Job func()

// Queue is a bounded ring of Jobs with producer/consumer blocking.
// Take executes the callable synchronously before returning, so a
// successful Take means the job has already run.
type Queue struct {
	stateos.Header // Header.Waiters is the consumer (wait-on-empty) queue
	sched          *stateos.Scheduler
	buf            *ring.Ring[Job]
	capacity       int
	producers      stateos.WaitQueue // wait-on-full
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New constructs a statically-stored Queue of the given capacity.
func New(sched *stateos.Scheduler, capacity int) *Queue {
	stateos.Assertf(capacity > 0, "jobqueue: New: capacity must be positive")
	return &Queue{
		Header:   stateos.NewStaticHeader(),
		sched:    sched,
		buf:      ring.New[Job](nextPow2(capacity)),
		capacity: capacity,
	}
}

// NewDynamic carves a Queue of the given capacity out of alloc's arena,
// returning (nil, false) if the arena is exhausted. The arena
// reservation tracks the queue's own bookkeeping (one byte per slot of
// capacity) — the ring itself is still backed by a regular Go
// slice, since this Allocator hands out byte ranges, not typed storage.
func NewDynamic(sched *stateos.Scheduler, alloc *stateos.Allocator, capacity int) (*Queue, bool) {
	stateos.Assertf(capacity > 0, "jobqueue: NewDynamic: capacity must be positive")
	h, ok := stateos.NewDynamicHeader(alloc, capacity)
	if !ok {
		return nil, false
	}
	return &Queue{
		Header:   h,
		sched:    sched,
		buf:      ring.New[Job](nextPow2(capacity)),
		capacity: capacity,
	}, true
}

// Len reports the number of jobs currently queued.
func (q *Queue) Len() int {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	return q.buf.Len()
}

// Space reports the number of additional jobs that can be enqueued
// before Give would return E_TIMEOUT (and SendFor/SendUntil would block).
func (q *Queue) Space() int {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	return q.capacity - q.buf.Len()
}

// Cap reports the queue's fixed capacity.
func (q *Queue) Cap() int { return q.capacity }

// Take is the non-blocking fast path: if the queue is empty, returns
// E_TIMEOUT without touching state. Otherwise it pops the head job,
// runs it synchronously, and — if a producer was blocked on full —
// deposits that producer's pending job into the slot Take's pop just
// vacated before waking the producer with E_SUCCESS, preserving
// insertion order across the handoff.
func (q *Queue) Take() stateos.Outcome {
	q.sched.Lock()
	q.CheckAlive()
	job, outcome := q.takeLocked()
	q.sched.Unlock()
	if outcome != stateos.E_SUCCESS {
		return outcome
	}
	job()
	return stateos.E_SUCCESS
}

func (q *Queue) takeLocked() (Job, stateos.Outcome) {
	job, ok := q.buf.PopFront()
	if !ok {
		return nil, stateos.E_TIMEOUT
	}
	if p := q.sched.WakeOne(&q.producers); p != nil {
		pending, _ := p.Scratch().Value.(Job)
		q.buf.PushBack(pending)
		p.SetScratch(stateos.Scratch{})
	}
	return job, stateos.E_SUCCESS
}

// WaitFor tries the fast path, and on a miss enlists self as a consumer
// until timeout ticks pass, a matching Give/push arrives (E_SUCCESS,
// with the delivered job already run), or the queue is reset/destroyed.
func (q *Queue) WaitFor(self *stateos.Task, timeout stateos.Tick) stateos.Outcome {
	return q.waitUntilDeadline(self, timeout, false, 0)
}

// WaitUntil is WaitFor with an absolute deadline.
func (q *Queue) WaitUntil(self *stateos.Task, deadline stateos.Tick) stateos.Outcome {
	return q.waitUntilDeadline(self, 0, true, deadline)
}

func (q *Queue) waitUntilDeadline(self *stateos.Task, timeout stateos.Tick, absolute bool, deadline stateos.Tick) stateos.Outcome {
	q.sched.Lock()
	q.CheckAlive()
	if job, outcome := q.takeLocked(); outcome == stateos.E_SUCCESS {
		q.sched.Unlock()
		job()
		return stateos.E_SUCCESS
	}
	rel := timeout
	if absolute {
		now := q.sched.Now()
		if !stateos.TickBefore(now, deadline) {
			q.sched.Unlock()
			return stateos.E_TIMEOUT
		}
		rel = deadline - now
	}
	if rel == stateos.Immediate {
		q.sched.Unlock()
		return stateos.E_TIMEOUT
	}
	outcome := q.sched.WaitFor(self, &q.Header.Waiters, stateos.Scratch{Kind: stateos.ScratchConsumer}, rel)
	var job Job
	if outcome == stateos.E_SUCCESS {
		job, _ = self.Scratch().Value.(Job)
	}
	q.sched.Unlock()
	if job != nil {
		job()
	}
	return outcome
}

// Give is the blocking-capable enqueue fast path: if a consumer is
// already parked waiting on empty, the job is handed to it directly
// (bypassing the ring) and it is woken with E_SUCCESS. Otherwise, if
// there is room, the job is appended to the tail. If the queue is full
// and no consumer is waiting, Give returns E_TIMEOUT; a blocking
// producer should call SendFor/SendUntil instead.
func (q *Queue) Give(job Job) stateos.Outcome {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	return q.giveLocked(job)
}

func (q *Queue) giveLocked(job Job) stateos.Outcome {
	if c := q.sched.WakeOne(&q.Header.Waiters); c != nil {
		c.SetScratch(stateos.Scratch{Kind: stateos.ScratchConsumer, Value: job})
		return stateos.E_SUCCESS
	}
	// q.buf may be sized larger than q.capacity (the next power of two),
	// so fullness is judged against the logical capacity, not the ring's.
	if q.buf.Len() >= q.capacity {
		return stateos.E_TIMEOUT
	}
	q.buf.PushBack(job)
	return stateos.E_SUCCESS
}

// Push never blocks and never fails: a consumer waiting on empty
// receives the job directly as in Give; otherwise, if the queue is at
// capacity, the oldest entry is evicted to make room. Safe to call from
// interrupt-context-analogous code (any goroutine, without a Task).
func (q *Queue) Push(job Job) {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	if c := q.sched.WakeOne(&q.Header.Waiters); c != nil {
		c.SetScratch(stateos.Scratch{Kind: stateos.ScratchConsumer, Value: job})
		return
	}
	if q.buf.Len() >= q.capacity {
		q.buf.PopFront()
	}
	q.buf.PushBack(job)
}

// SendFor blocks the calling task until Give would succeed or timeout
// ticks pass. self's scratch holds the job it intends to deliver so
// that a concurrent Take can hand it directly into the vacated slot.
func (q *Queue) SendFor(self *stateos.Task, job Job, timeout stateos.Tick) stateos.Outcome {
	return q.sendUntilDeadline(self, job, timeout, false, 0)
}

// SendUntil is SendFor with an absolute deadline.
func (q *Queue) SendUntil(self *stateos.Task, job Job, deadline stateos.Tick) stateos.Outcome {
	return q.sendUntilDeadline(self, job, 0, true, deadline)
}

func (q *Queue) sendUntilDeadline(self *stateos.Task, job Job, timeout stateos.Tick, absolute bool, deadline stateos.Tick) stateos.Outcome {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	if outcome := q.giveLocked(job); outcome != stateos.E_TIMEOUT {
		return outcome
	}
	rel := timeout
	if absolute {
		now := q.sched.Now()
		if !stateos.TickBefore(now, deadline) {
			return stateos.E_TIMEOUT
		}
		rel = deadline - now
	}
	if rel == stateos.Immediate {
		return stateos.E_TIMEOUT
	}
	return q.sched.WaitFor(self, &q.producers, stateos.Scratch{Kind: stateos.ScratchProducer, Value: job}, rel)
}

// Reset wakes every consumer and producer waiter with E_STOPPED,
// leaving the queue's contents and capacity untouched.
func (q *Queue) Reset() int {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	n := q.sched.DrainQueue(&q.Header.Waiters, stateos.E_STOPPED)
	n += q.sched.DrainQueue(&q.producers, stateos.E_STOPPED)
	return n
}

// Destroy wakes every waiter with E_DELETED and releases the queue.
func (q *Queue) Destroy() int {
	q.sched.Lock()
	defer q.sched.Unlock()
	q.CheckAlive()
	n := q.sched.DrainQueue(&q.Header.Waiters, stateos.E_DELETED)
	n += q.sched.DrainQueue(&q.producers, stateos.E_DELETED)
	q.Header.Release()
	return n
}
