package stateos

// ScratchKind tags the variant held by a [Scratch] value. The kernel
// never inspects the payload itself; only the primitive that enlisted
// the task knows how to interpret it.
type ScratchKind uint8

const (
	// ScratchNone means the task carries no hand-off payload.
	ScratchNone ScratchKind = iota
	// ScratchConsumer means Value is the destination a producer should
	// write into before waking this task (e.g. a job-queue consumer
	// parked on an empty queue).
	ScratchConsumer
	// ScratchProducer means Value is the payload this task intends to
	// deliver once a consumer (or free slot) becomes available.
	ScratchProducer
	// ScratchSignalSet means Value is the signal bitmask this task is
	// waiting to have satisfied.
	ScratchSignalSet
)

// Scratch is the explicit, sum-typed replacement for the source kernel's
// per-task scratch union: a small hand-off slot the waker writes into
// under the kernel lock, so the enlisting primitive never needs to
// allocate to pass a value to (or take one from) a blocked task.
type Scratch struct {
	Kind  ScratchKind
	Value any
}
