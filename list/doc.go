// Package list implements an external-storage list primitive: a
// singly-linked queue of application-owned nodes. Give
// appends, Take removes the head (or, on a miss, blocks a consumer
// until the next Give delivers directly via the same handoff scratch
// the job queue uses). Nothing is ever copied; only links move.
package list
