package stateos

// storage identifies whether a primitive's backing storage was supplied
// by the caller (static construction) or carved out of an [Allocator]
// (dynamic construction), which in turn decides whether Destroy must
// return memory.
type storage uint8

const (
	storageStatic storage = iota
	storageDynamic
)

// liveness is the header's alive/released marker, checked before every
// operation.
type liveness uint32

const (
	alive liveness = iota
	released
)

// Header is embedded as the first field of every synchronizable
// primitive (signal set, job queue, list, event, mutex). It carries one
// waiter queue, the primitive's storage provenance, and its liveness
// marker — the Go-native stand-in for the source kernel's inheritance-
// by-embedding object header. A primitive with more than one
// independent wait condition (the job queue) adds extra [WaitQueue]
// fields of its own alongside a Header, sharing its liveness marker;
// Header itself stays a plain data holder; all wake logic lives on
// [Scheduler], which is handed a *Header or *WaitQueue directly. An
// earlier draft put wakeOneLocked/wakeAllLocked methods on Header
// itself, which cannot work: a header has no access to the scheduler's
// ready queue or timer list.
type Header struct {
	Waiters WaitQueue
	store   storage
	live    liveness
	alloc   *Allocator
	region  Block
}

// NewStaticHeader builds a Header for a statically-constructed
// primitive: caller-provided storage, no allocator involvement on
// Destroy. This is the zero-allocation construction path.
func NewStaticHeader() Header {
	return Header{store: storageStatic, live: alive}
}

// NewDynamicHeader reserves n bytes from alloc for a dynamically-
// constructed primitive's own bookkeeping and returns the resulting
// Header, or (Header{}, false) if the arena is exhausted — construction
// returns a null handle rather than panicking. A primitive with no
// variable-size payload of its own (signal set, list, event,
// mutex) still routes through here with a small nominal n, so arena
// exhaustion affects every dynamically-constructed primitive uniformly
// and not just the job queue, which sizes n to its capacity.
func NewDynamicHeader(alloc *Allocator, n int) (Header, bool) {
	block, ok := alloc.Alloc(n)
	if !ok {
		return Header{}, false
	}
	return Header{store: storageDynamic, live: alive, alloc: alloc, region: block}, true
}

// Alive reports whether the object has not yet been destroyed.
func (h *Header) Alive() bool { return h.live == alive }

// CheckAlive enforces the precondition that operating on a released
// object is a debug-assert fatal, not a runtime outcome.
// Every primitive package calls this at the top of its own operations,
// since Header lives in this package but is embedded by primitives
// elsewhere.
func (h *Header) CheckAlive() {
	Assert(h.live == alive, "stateos: operation on released object")
}

// Release marks the header released and, if the storage was dynamically
// allocated, returns it to the allocator. Must be called under the
// kernel lock, after the caller has already woken every waiter with
// E_DELETED via Scheduler.DrainQueue.
func (h *Header) Release() {
	h.live = released
	if h.store == storageDynamic && h.alloc != nil && h.region.Bytes != nil {
		h.alloc.Free(h.region)
		h.region = Block{}
	}
}
