package stateos_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stateos "github.com/EmreBlky/StateOS"
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

func TestStart_HigherPriorityRunsNextAtCheckpoint(t *testing.T) {
	sched := stateos.New()
	lowRan := make(chan struct{})
	highRan := make(chan struct{})

	low := sched.NewTask("low", 1, func(self *stateos.Task) {
		close(lowRan)
		self.SleepFor(stateos.Infinite) // checkpoint: yields the token cooperatively
	})
	sched.Start(low)
	<-lowRan

	high := sched.NewTask("high", 5, func(self *stateos.Task) {
		close(highRan)
	})
	sched.Start(high)

	select {
	case <-highRan:
	case <-time.After(2 * time.Second):
		t.Fatal("higher-priority task never ran")
	}
}

func TestStop_WakesJoinersSuccess(t *testing.T) {
	sched := stateos.New()
	target := sched.NewTask("target", 1, func(self *stateos.Task) {
		self.SleepFor(stateos.Infinite)
	})
	sched.Start(target)
	waitForState(t, target, stateos.Delayed)

	outcomeCh := make(chan stateos.Outcome, 1)
	joiner := sched.NewTask("joiner", 1, func(self *stateos.Task) {
		outcomeCh <- self.Join(target, stateos.Infinite)
	})
	sched.Start(joiner)
	waitForState(t, joiner, stateos.Blocked)

	sched.Stop(target)
	assert.Equal(t, stateos.E_SUCCESS, <-outcomeCh)
	assert.Equal(t, stateos.Dormant, target.State())
}

func TestJoin_AlreadyExitedReturnsImmediately(t *testing.T) {
	sched := stateos.New()
	doneCh := make(chan struct{})
	target := sched.NewTask("target", 1, func(self *stateos.Task) {
		close(doneCh)
	})
	sched.Start(target)
	<-doneCh
	for target.State() != stateos.Dormant {
		time.Sleep(time.Millisecond)
	}

	outcomeCh := make(chan stateos.Outcome, 1)
	joiner := sched.NewTask("joiner", 1, func(self *stateos.Task) {
		outcomeCh <- self.Join(target, stateos.Infinite)
	})
	sched.Start(joiner)
	assert.Equal(t, stateos.E_SUCCESS, <-outcomeCh)
}

func TestSleepFor_ReturnsSuccessOnDeadline(t *testing.T) {
	clock := &stateos.ManualClock{}
	sched := stateos.New(stateos.WithClock(clock))

	outcomeCh := make(chan stateos.Outcome, 1)
	task := sched.NewTask("sleeper", 1, func(self *stateos.Task) {
		outcomeCh <- self.SleepFor(10)
	})
	sched.Start(task)
	waitForState(t, task, stateos.Delayed)

	clock.Advance(10)
	sched.Tick()

	assert.Equal(t, stateos.E_SUCCESS, <-outcomeCh, "reaching a sleep deadline is success, not timeout")
}

func TestSuspendResume(t *testing.T) {
	sched := stateos.New()
	unblock := make(chan struct{})
	blocker := sched.NewTask("blocker", 10, func(self *stateos.Task) {
		<-unblock // holds the CPU token without ever checkpointing
	})
	sched.Start(blocker)
	waitForState(t, blocker, stateos.Running)

	ranCh := make(chan struct{})
	task := sched.NewTask("task", 1, func(self *stateos.Task) {
		close(ranCh)
	})
	sched.Start(task)
	waitForState(t, task, stateos.Ready)

	sched.Suspend(task)
	assert.Equal(t, stateos.Suspended, task.State())

	close(unblock)
	waitForState(t, blocker, stateos.Dormant)

	select {
	case <-ranCh:
		t.Fatal("suspended task ran despite blocker finishing")
	case <-time.After(50 * time.Millisecond):
	}

	sched.Resume(task)
	select {
	case <-ranCh:
	case <-time.After(2 * time.Second):
		t.Fatal("resumed task never ran")
	}
}

func TestTasks_SortedByID(t *testing.T) {
	sched := stateos.New()
	a := sched.NewTask("a", 1, func(*stateos.Task) {})
	b := sched.NewTask("b", 1, func(*stateos.Task) {})
	c := sched.NewTask("c", 1, func(*stateos.Task) {})

	tasks := sched.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, []uint64{a.ID, b.ID, c.ID}, []uint64{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestWaitQueue_StrictPriorityFIFOTieBreak(t *testing.T) {
	sched := stateos.New()
	var order []string
	var mu sync.Mutex

	unblock := make(chan struct{})
	blocker := sched.NewTask("blocker", 10, func(self *stateos.Task) {
		<-unblock // holds the CPU token while the three tasks below queue up Ready
	})
	sched.Start(blocker)
	waitForState(t, blocker, stateos.Running)

	done := make(chan struct{}, 3)
	spawn := func(name string, priority int) {
		task := sched.NewTask(name, priority, func(self *stateos.Task) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			done <- struct{}{}
		})
		sched.Start(task)
		waitForState(t, task, stateos.Ready)
	}
	spawn("low-a", 1)
	spawn("low-b", 1)
	spawn("high", 5)

	close(unblock)
	waitForState(t, blocker, stateos.Dormant)
	for i := 0; i < 3; i++ {
		<-done
	}

	assert.Equal(t, []string{"high", "low-a", "low-b"}, order)
}
