// Package signal implements a signal set primitive: a fixed-width
// bitmask of pending signals, with a protect mask fixed at construction
// that marks which bits are sticky (remain pending after being
// observed) versus consumed on a successful Take.
package signal
