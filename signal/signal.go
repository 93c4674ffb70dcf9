package signal

import (
	"math/bits"

	stateos "github.com/EmreBlky/StateOS"
)

// WordBits is the width of a Mask; signal numbers outside [0, WordBits)
// are not representable.
const WordBits = 64

// Mask is a bitmask of signal numbers.
type Mask uint64

// SigSet returns the mask selecting signal s, or 0 if s is out of
// range.
func SigSet(s int) Mask {
	if s < 0 || s >= WordBits {
		return 0
	}
	return Mask(1) << uint(s)
}

const (
	// SigAll selects every signal.
	SigAll Mask = ^Mask(0)
	// SigAny is satisfied only by a sticky signal already pending; it
	// selects nothing new.
	SigAny Mask = 0
)

// Set is a signal set: a pending bitmask and a protect bitmask fixed at
// construction. Bits set in protect are sticky — Take/Give leave them
// pending after delivery; all other bits are consumed on delivery.
type Set struct {
	stateos.Header
	sched   *stateos.Scheduler
	pending Mask
	protect Mask
}

// New constructs a Set using caller-managed (static) storage — in this
// port, simply the Set value itself; Go's allocator handles placement.
func New(sched *stateos.Scheduler, protect Mask) *Set {
	return &Set{Header: stateos.NewStaticHeader(), sched: sched, protect: protect}
}

// NewDynamic constructs a Set carved out of alloc, returning (nil,
// false) if the arena is exhausted.
func NewDynamic(sched *stateos.Scheduler, alloc *stateos.Allocator, protect Mask) (*Set, bool) {
	h, ok := stateos.NewDynamicHeader(alloc, 1)
	if !ok {
		return nil, false
	}
	return &Set{Header: h, sched: sched, protect: protect}, true
}

func lowestBit(m Mask) int { return bits.TrailingZeros64(uint64(m)) }

// Take is the non-blocking fast path: if pending&set has any bit, the
// lowest one is returned and, unless protected, consumed. Otherwise
// returns E_TIMEOUT without modifying state.
func (s *Set) Take(set Mask) (int, stateos.Outcome) {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	return s.takeLocked(set)
}

func (s *Set) takeLocked(set Mask) (int, stateos.Outcome) {
	if set == SigAny {
		set = s.protect
	}
	hit := s.pending & set
	if hit == 0 {
		return -1, stateos.E_TIMEOUT
	}
	bit := lowestBit(hit)
	if s.protect&SigSet(bit) == 0 {
		s.pending &^= SigSet(bit)
	}
	return bit, stateos.E_SUCCESS
}

// WaitFor tries the fast path, and on a miss enlists the calling task
// (self) with set stashed in its scratch, returning whatever Give
// eventually delivers, E_TIMEOUT after timeout ticks, E_STOPPED if the
// set is Reset (or self is Stopped) while waiting, or E_DELETED if it
// is Destroyed while waiting. A timeout of Immediate is equivalent to
// Take.
func (s *Set) WaitFor(self *stateos.Task, set Mask, timeout stateos.Tick) (int, stateos.Outcome) {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	if bit, outcome := s.takeLocked(set); outcome == stateos.E_SUCCESS {
		return bit, outcome
	}
	if timeout == stateos.Immediate {
		return -1, stateos.E_TIMEOUT
	}
	outcome := s.sched.WaitFor(self, &s.Header.Waiters, stateos.Scratch{Kind: stateos.ScratchSignalSet, Value: set}, timeout)
	if outcome != stateos.E_SUCCESS {
		return -1, outcome
	}
	bit, _ := self.Scratch().Value.(int)
	return bit, stateos.E_SUCCESS
}

// WaitUntil is WaitFor with an absolute deadline instead of a duration.
func (s *Set) WaitUntil(self *stateos.Task, set Mask, deadline stateos.Tick) (int, stateos.Outcome) {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	if bit, outcome := s.takeLocked(set); outcome == stateos.E_SUCCESS {
		return bit, outcome
	}
	now := s.sched.Now()
	if !stateos.TickBefore(now, deadline) {
		return -1, stateos.E_TIMEOUT
	}
	outcome := s.sched.WaitFor(self, &s.Header.Waiters, stateos.Scratch{Kind: stateos.ScratchSignalSet, Value: set}, deadline-now)
	if outcome != stateos.E_SUCCESS {
		return -1, outcome
	}
	bit, _ := self.Scratch().Value.(int)
	return bit, stateos.E_SUCCESS
}

// Give raises bit. It sets the pending bit, then walks the waiter queue
// head to tail waking every waiter whose stashed set contains bit; for
// a non-sticky bit the walk stops at (and the bit is cleared by) the
// first match, guaranteeing at-most-one consumer. For a sticky bit
// every matching waiter wakes and the bit stays pending.
//
// Per the Open Question resolution in DESIGN.md, re-raising a
// non-sticky bit that is already pending with no waiter yet present is
// a no-op: it does not re-walk the waiter queue (which, by the signal
// invariant, holds no waiter for that bit) for a bit already waiting to
// be delivered.
func (s *Set) Give(bit int) {
	stateos.Assertf(bit >= 0 && bit < WordBits, "signal: Give: bit %d out of range", bit)
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	mask := SigSet(bit)
	sticky := s.protect&mask != 0
	if !sticky && s.pending&mask != 0 {
		return
	}
	s.pending |= mask
	match := func(sc stateos.Scratch) bool {
		if sc.Kind != stateos.ScratchSignalSet {
			return false
		}
		want, _ := sc.Value.(Mask)
		return want&mask != 0
	}
	onWake := func(t *stateos.Task) {
		t.SetScratch(stateos.Scratch{Kind: stateos.ScratchSignalSet, Value: bit})
	}
	woken := s.sched.WakeMatching(&s.Header.Waiters, match, onWake, !sticky)
	if !sticky && woken > 0 {
		s.pending &^= mask
	}
}

// SetBit is an alias for Give, matching the original kernel header's
// sig_give/sig_set dual naming; Go has no macro layer to alias through
// a second identical method, so this just forwards.
func (s *Set) SetBit(bit int) { s.Give(bit) }

// Clear unconditionally clears bit, regardless of protect.
func (s *Set) Clear(bit int) {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	s.pending &^= SigSet(bit)
}

// Pending returns the current pending mask, for introspection and
// tests.
func (s *Set) Pending() Mask {
	s.sched.Lock()
	defer s.sched.Unlock()
	return s.pending
}

// Reset wakes every waiter with E_STOPPED, leaving the set usable.
func (s *Set) Reset() int {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	return s.sched.Reset(&s.Header)
}

// Destroy wakes every waiter with E_DELETED and releases the set.
func (s *Set) Destroy() int {
	s.sched.Lock()
	defer s.sched.Unlock()
	s.CheckAlive()
	return s.sched.Destroy(&s.Header)
}
