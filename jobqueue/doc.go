// Package jobqueue implements a job queue primitive: a bounded ring of
// opaque callable handles with producer/consumer
// blocking and an execute-on-take contract — Take runs the callable
// synchronously in the caller's context before returning.
package jobqueue
