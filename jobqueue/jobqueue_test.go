package jobqueue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stateos "github.com/EmreBlky/StateOS"
	"github.com/EmreBlky/StateOS/jobqueue"
)

func waitForState(t *testing.T, task *stateos.Task, want stateos.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if task.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %q never reached state %s (stuck at %s)", task.Name, want, task.State())
}

// TestJobQueueSynchronousExecution: a consumer parked on an empty
// capacity-1 queue wakes and runs the producer's callable, observing
// the value the producer set just before Give.
func TestJobQueueSynchronousExecution(t *testing.T) {
	sched := stateos.New()
	q := jobqueue.New(sched, 1)

	var sent, received int
	doneCh := make(chan stateos.Outcome, 1)

	consumer := sched.NewTask("proc1", 1, func(self *stateos.Task) {
		outcome := q.WaitFor(self, stateos.Infinite)
		doneCh <- outcome
	})
	sched.Start(consumer)
	waitForState(t, consumer, stateos.Blocked)

	sent = 42
	outcome := q.Give(func() { received = sent })
	require.Equal(t, stateos.E_SUCCESS, outcome)

	require.Equal(t, stateos.E_SUCCESS, <-doneCh)
	assert.Equal(t, sent, received)
}

// TestFullJobQueuePush: pushing past capacity evicts the oldest entry,
// and subsequent Takes execute in the surviving order.
func TestFullJobQueuePush(t *testing.T) {
	sched := stateos.New()
	q := jobqueue.New(sched, 2)

	var order []string
	q.Push(func() { order = append(order, "f1") })
	q.Push(func() { order = append(order, "f2") })
	q.Push(func() { order = append(order, "f3") })

	assert.Equal(t, 2, q.Len())

	require.Equal(t, stateos.E_SUCCESS, q.Take())
	require.Equal(t, stateos.E_SUCCESS, q.Take())
	assert.Equal(t, []string{"f2", "f3"}, order)
	assert.Equal(t, 0, q.Len())
}

// TestWaitFor_TimedOut: a consumer waiting on an empty queue is
// released with E_TIMEOUT once its deadline passes, and the queue
// remains empty.
func TestWaitFor_TimedOut(t *testing.T) {
	clock := &stateos.ManualClock{}
	clock.Set(100)
	sched := stateos.New(stateos.WithClock(clock))
	q := jobqueue.New(sched, 1)

	outcomeCh := make(chan stateos.Outcome, 1)
	consumer := sched.NewTask("proc1", 1, func(self *stateos.Task) {
		outcomeCh <- q.WaitFor(self, 10)
	})
	sched.Start(consumer)
	waitForState(t, consumer, stateos.Delayed)

	clock.Set(110)
	sched.Tick()

	assert.Equal(t, stateos.E_TIMEOUT, <-outcomeCh)
	assert.Equal(t, 0, q.Len())
}

// TestDestroy_WakesWaiterDeletedAndTraps: a waiter blocked on Destroy
// wakes with E_DELETED, and further operations on the queue panic.
func TestDestroy_WakesWaiterDeletedAndTraps(t *testing.T) {
	sched := stateos.New()
	q := jobqueue.New(sched, 1)

	outcomeCh := make(chan stateos.Outcome, 1)
	consumer := sched.NewTask("proc1", 1, func(self *stateos.Task) {
		outcomeCh <- q.WaitFor(self, stateos.Infinite)
	})
	sched.Start(consumer)
	waitForState(t, consumer, stateos.Blocked)

	woken := q.Destroy()
	assert.Equal(t, 1, woken)
	assert.Equal(t, stateos.E_DELETED, <-outcomeCh)
	assert.Panics(t, func() { q.Take() })
}

// TestWaitFor_Immediate_MatchesTake: WaitFor with stateos.Immediate must
// behave identically to the non-blocking Take, both on an empty queue
// and on one with a job already waiting.
func TestWaitFor_Immediate_MatchesTake(t *testing.T) {
	sched := stateos.New()
	q := jobqueue.New(sched, 1)

	self := sched.NewTask("probe", 1, func(*stateos.Task) {})

	assert.Equal(t, stateos.E_TIMEOUT, q.Take())
	assert.Equal(t, stateos.E_TIMEOUT, q.WaitFor(self, stateos.Immediate))

	var ran bool
	require.Equal(t, stateos.E_SUCCESS, q.Give(func() { ran = true }))
	assert.Equal(t, stateos.E_SUCCESS, q.WaitFor(self, stateos.Immediate))
	assert.True(t, ran, "WaitFor(Immediate) must run the job synchronously like Take")
	assert.Equal(t, 0, q.Len())
}

// TestTake_WakesBlockedProducer exercises the producer-full handoff:
// Take pops the head job, runs it, then deposits the blocked
// producer's pending job into the vacated slot and wakes it, so the
// overall effective order is still insertion order.
func TestTake_WakesBlockedProducer(t *testing.T) {
	sched := stateos.New()
	q := jobqueue.New(sched, 1)

	require.Equal(t, stateos.E_SUCCESS, q.Give(func() {}))
	assert.Equal(t, 1, q.Len())

	var order []string
	sendOutcomeCh := make(chan stateos.Outcome, 1)
	producer := sched.NewTask("producer", 1, func(self *stateos.Task) {
		outcome := q.SendFor(self, func() { order = append(order, "second") }, stateos.Infinite)
		sendOutcomeCh <- outcome
	})
	sched.Start(producer)
	waitForState(t, producer, stateos.Blocked)

	order = append(order, "first-marker")
	require.Equal(t, stateos.E_SUCCESS, q.Take()) // runs the original job, wakes producer

	require.Equal(t, stateos.E_SUCCESS, <-sendOutcomeCh)
	assert.Equal(t, 1, q.Len(), "producer's job was deposited into the vacated slot")
	assert.Equal(t, stateos.E_SUCCESS, q.Take())
	assert.Equal(t, []string{"first-marker", "second"}, order)
}
