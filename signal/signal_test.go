package signal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stateos "github.com/EmreBlky/StateOS"
	"github.com/EmreBlky/StateOS/signal"
)

// waitForState polls t's state until it reaches want or the test times
// out. Scheduling decisions happen on each task's own goroutine, so
// tests that need to observe an intermediate state (a task parked in
// WaitFor) have no other synchronization point to hang off of.
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

// TestSignalHandoff: a task blocked in WaitFor wakes with the delivered
// bit number once Give raises it.
func TestSignalHandoff(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)

	bitCh := make(chan int, 1)
	outcomeCh := make(chan stateos.Outcome, 1)

	waiter := sched.NewTask("waiter", 1, func(self *stateos.Task) {
		bit, outcome := set.WaitFor(self, signal.SigSet(3), stateos.Infinite)
		bitCh <- bit
		outcomeCh <- outcome
	})
	sched.Start(waiter)

	waitForState(t, waiter, stateos.Blocked)
	set.Give(3)

	require.Equal(t, stateos.E_SUCCESS, <-outcomeCh)
	assert.Equal(t, 3, <-bitCh)
	assert.Equal(t, signal.Mask(0), set.Pending(), "non-sticky bit is consumed on delivery")
}

// TestStickySignalBroadcast: a sticky bit wakes every current waiter
// and remains pending for later Take calls.
func TestStickySignalBroadcast(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigSet(5))

	const n = 3
	bitCh := make(chan int, n)
	waiters := make([]*stateos.Task, n)
	for i := range waiters {
		waiters[i] = sched.NewTask("waiter", 1, func(self *stateos.Task) {
			bit, outcome := set.WaitFor(self, signal.SigSet(5), stateos.Infinite)
			require.Equal(t, stateos.E_SUCCESS, outcome)
			bitCh <- bit
		})
		sched.Start(waiters[i])
	}
	for _, w := range waiters {
		waitForState(t, w, stateos.Blocked)
	}

	set.Give(5)

	for i := 0; i < n; i++ {
		assert.Equal(t, 5, <-bitCh)
	}
	assert.Equal(t, signal.SigSet(5), set.Pending(), "sticky bit stays pending after broadcast")

	// A late arrival still observes the sticky bit via the fast path.
	bit, outcome := set.Take(signal.SigSet(5))
	assert.Equal(t, stateos.E_SUCCESS, outcome)
	assert.Equal(t, 5, bit)
}

// TestGive_NonStickyReraiseIsNoOp: re-raising a pending non-sticky bit
// with no waiter present must not panic or otherwise misbehave, and a
// subsequent Take still observes exactly one delivery.
func TestGive_NonStickyReraiseIsNoOp(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)

	set.Give(2)
	set.Give(2) // re-raise while still pending and unconsumed

	bit, outcome := set.Take(signal.SigSet(2))
	assert.Equal(t, stateos.E_SUCCESS, outcome)
	assert.Equal(t, 2, bit)
	assert.Equal(t, signal.Mask(0), set.Pending())
}

func TestTake_MissReturnsTimeoutWithoutBlocking(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)

	bit, outcome := set.Take(signal.SigSet(1))
	assert.Equal(t, stateos.E_TIMEOUT, outcome)
	assert.Equal(t, -1, bit)
}

// TestWaitFor_Immediate_MatchesTake: a WaitFor call with stateos.Immediate
// never blocks and must return exactly what Take would, both on a miss
// and on a hit.
func TestWaitFor_Immediate_MatchesTake(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)
	self := sched.NewTask("probe", 1, func(*stateos.Task) {})

	bit, outcome := set.WaitFor(self, signal.SigSet(4), stateos.Immediate)
	assert.Equal(t, stateos.E_TIMEOUT, outcome)
	assert.Equal(t, -1, bit)

	set.Give(4)
	bit, outcome = set.WaitFor(self, signal.SigSet(4), stateos.Immediate)
	assert.Equal(t, stateos.E_SUCCESS, outcome)
	assert.Equal(t, 4, bit)
	assert.Equal(t, signal.Mask(0), set.Pending(), "non-sticky bit consumed same as Take")
}

func TestWaitFor_TimesOut(t *testing.T) {
	clock := &stateos.ManualClock{}
	sched := stateos.New(stateos.WithClock(clock))
	set := signal.New(sched, signal.SigAny)

	outcomeCh := make(chan stateos.Outcome, 1)
	waiter := sched.NewTask("waiter", 1, func(self *stateos.Task) {
		_, outcome := set.WaitFor(self, signal.SigSet(0), 10)
		outcomeCh <- outcome
	})
	sched.Start(waiter)

	waitForState(t, waiter, stateos.Delayed)
	clock.Advance(10)
	sched.Tick()

	assert.Equal(t, stateos.E_TIMEOUT, <-outcomeCh)
}

func TestReset_WakesWaitersStopped(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)

	outcomeCh := make(chan stateos.Outcome, 1)
	waiter := sched.NewTask("waiter", 1, func(self *stateos.Task) {
		_, outcome := set.WaitFor(self, signal.SigSet(7), stateos.Infinite)
		outcomeCh <- outcome
	})
	sched.Start(waiter)
	waitForState(t, waiter, stateos.Blocked)

	woken := set.Reset()
	assert.Equal(t, 1, woken)
	assert.Equal(t, stateos.E_STOPPED, <-outcomeCh)
}

func TestDestroy_WakesWaitersDeletedAndReleases(t *testing.T) {
	sched := stateos.New()
	set := signal.New(sched, signal.SigAny)

	outcomeCh := make(chan stateos.Outcome, 1)
	waiter := sched.NewTask("waiter", 1, func(self *stateos.Task) {
		_, outcome := set.WaitFor(self, signal.SigSet(7), stateos.Infinite)
		outcomeCh <- outcome
	})
	sched.Start(waiter)
	waitForState(t, waiter, stateos.Blocked)

	woken := set.Destroy()
	assert.Equal(t, 1, woken)
	assert.Equal(t, stateos.E_DELETED, <-outcomeCh)
	assert.Panics(t, func() { set.Take(signal.SigAll) }, "operating on a destroyed set is a precondition violation")
}
