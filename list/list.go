package list

import (
	stateos "github.com/EmreBlky/StateOS"
)

// Node is the link word prefixed onto every list-owned payload: embed
// Node[T] as the first field of an application struct
// (or carry a value directly) to make it linkable without copying.
type Node[T any] struct {
	next *Node[T]
	// Value is the application's payload; List never inspects it.
	Value T
}

// List is a singly-linked FIFO queue of externally-owned nodes. Give
// splices a node onto the tail; Take unlinks and returns the head.
// Nothing is ever copied.
type List[T any] struct {
	stateos.Header
	sched      *stateos.Scheduler
	head, tail *Node[T]
	len        int
}

// New constructs a statically-stored List.
func New[T any](sched *stateos.Scheduler) *List[T] {
	return &List[T]{Header: stateos.NewStaticHeader(), sched: sched}
}

// NewDynamic carves a List's own bookkeeping out of alloc's arena. A
// list has no variable-size payload of its own — every node's storage
// is owned by the application — so this reserves only a small nominal
// region, per Header's dynamic-construction contract.
func NewDynamic[T any](sched *stateos.Scheduler, alloc *stateos.Allocator) (*List[T], bool) {
	h, ok := stateos.NewDynamicHeader(alloc, 1)
	if !ok {
		return nil, false
	}
	return &List[T]{Header: h, sched: sched}, true
}

// Len reports the number of linked nodes.
func (l *List[T]) Len() int {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	return l.len
}

// Give appends node at the tail. If a consumer is already parked in
// WaitFor/WaitUntil on an empty list, node is handed to it directly —
// bypassing the list entirely — and it is woken with E_SUCCESS.
func (l *List[T]) Give(node *Node[T]) {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	node.next = nil
	if c := l.sched.WakeOne(&l.Header.Waiters); c != nil {
		c.SetScratch(stateos.Scratch{Kind: stateos.ScratchConsumer, Value: node})
		return
	}
	if l.tail == nil {
		l.head, l.tail = node, node
	} else {
		l.tail.next = node
		l.tail = node
	}
	l.len++
}

// Take is the non-blocking fast path: removes and returns the head
// node, or reports E_TIMEOUT without modifying the list if it is
// empty.
func (l *List[T]) Take() (*Node[T], stateos.Outcome) {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	return l.takeLocked()
}

func (l *List[T]) takeLocked() (*Node[T], stateos.Outcome) {
	n := l.head
	if n == nil {
		return nil, stateos.E_TIMEOUT
	}
	l.head = n.next
	if l.head == nil {
		l.tail = nil
	}
	n.next = nil
	l.len--
	return n, stateos.E_SUCCESS
}

// WaitFor tries the fast path, and on a miss enlists self until
// timeout ticks pass, a Give arrives directly (E_SUCCESS), or the list
// is reset/destroyed.
func (l *List[T]) WaitFor(self *stateos.Task, timeout stateos.Tick) (*Node[T], stateos.Outcome) {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	if n, outcome := l.takeLocked(); outcome == stateos.E_SUCCESS {
		return n, outcome
	}
	if timeout == stateos.Immediate {
		return nil, stateos.E_TIMEOUT
	}
	outcome := l.sched.WaitFor(self, &l.Header.Waiters, stateos.Scratch{Kind: stateos.ScratchConsumer}, timeout)
	if outcome != stateos.E_SUCCESS {
		return nil, outcome
	}
	n, _ := self.Scratch().Value.(*Node[T])
	return n, stateos.E_SUCCESS
}

// WaitUntil is WaitFor with an absolute deadline.
func (l *List[T]) WaitUntil(self *stateos.Task, deadline stateos.Tick) (*Node[T], stateos.Outcome) {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	if n, outcome := l.takeLocked(); outcome == stateos.E_SUCCESS {
		return n, outcome
	}
	now := l.sched.Now()
	if !stateos.TickBefore(now, deadline) {
		return nil, stateos.E_TIMEOUT
	}
	outcome := l.sched.WaitFor(self, &l.Header.Waiters, stateos.Scratch{Kind: stateos.ScratchConsumer}, deadline-now)
	if outcome != stateos.E_SUCCESS {
		return nil, outcome
	}
	n, _ := self.Scratch().Value.(*Node[T])
	return n, stateos.E_SUCCESS
}

// Reset wakes every waiter with E_STOPPED, leaving queued nodes intact.
func (l *List[T]) Reset() int {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	return l.sched.Reset(&l.Header)
}

// Destroy wakes every waiter with E_DELETED and releases the list.
// Queued-but-untaken nodes remain owned by whoever allocated them; the
// list never owned their storage.
func (l *List[T]) Destroy() int {
	l.sched.Lock()
	defer l.sched.Unlock()
	l.CheckAlive()
	return l.sched.Destroy(&l.Header)
}
