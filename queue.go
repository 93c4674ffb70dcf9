package stateos

// WaitQueue is a singly-linked, intrusive, priority-ordered FIFO: the
// one queue shape used for both the scheduler's ready queue and every
// primitive's waiter queue(s), resolving the tie-break rule uniformly
// across all of them. Ordering: strict priority descending,
// FIFO (insertion order) among tasks of equal priority. No allocation
// is performed; membership is threaded through Task.next. The zero
// value is an empty queue, ready to use.
//
// A primitive with a single wait condition embeds one via [Header]. A
// primitive with more than one independent wait condition (the job
// queue's separate consumer/producer waits) holds additional WaitQueue
// values alongside its Header, sharing that Header's liveness marker.
type WaitQueue struct {
	head, tail *Task
	len        int
}

// empty reports whether the queue holds no tasks.
func (q *WaitQueue) empty() bool { return q.head == nil }

// insert places t in priority order: ahead of the first task it
// outranks, after every task of equal-or-higher priority already
// present (i.e. at the tail of its own priority band).
func (q *WaitQueue) insert(t *Task) {
	t.next = nil
	q.len++
	if q.head == nil {
		q.head, q.tail = t, t
		return
	}
	if t.Priority > q.head.Priority {
		t.next = q.head
		q.head = t
		return
	}
	prev := q.head
	for prev.next != nil && prev.next.Priority >= t.Priority {
		prev = prev.next
	}
	t.next = prev.next
	prev.next = t
	if t.next == nil {
		q.tail = t
	}
}

// pushTail appends t unconditionally at the very end of the list,
// regardless of priority. Yield does not use it: its round-robin
// rotation goes through insert, which places t at the tail of its own
// priority band.
func (q *WaitQueue) pushTail(t *Task) {
	t.next = nil
	q.len++
	if q.tail == nil {
		q.head, q.tail = t, t
		return
	}
	q.tail.next = t
	q.tail = t
}

// popHead removes and returns the head task, or nil if empty.
func (q *WaitQueue) popHead() *Task {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.next
	if q.head == nil {
		q.tail = nil
	}
	t.next = nil
	q.len--
	return t
}

// remove detaches t from the list if present, reporting whether it was
// found. Used by Stop (cancel an in-flight wait) and by the timed-wait
// engine (detach before firing a timeout).
func (q *WaitQueue) remove(t *Task) bool {
	if q.head == nil {
		return false
	}
	if q.head == t {
		q.head = t.next
		if q.head == nil {
			q.tail = nil
		}
		t.next = nil
		q.len--
		return true
	}
	prev := q.head
	for prev.next != nil {
		if prev.next == t {
			prev.next = t.next
			if q.tail == t {
				q.tail = prev
			}
			t.next = nil
			q.len--
			return true
		}
		prev = prev.next
	}
	return false
}

// Len reports the number of tasks currently enlisted.
func (q *WaitQueue) Len() int { return q.len }
