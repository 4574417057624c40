// Package jobtable implements the concurrent Job Table: insert, delete,
// and lock-free snapshot iteration safe against concurrent hot-path reads.
//
// Structural mutation (insert/remove) is serialized by a single mutex, the
// same discipline the teacher's tq.go uses to guard its transmit queues
// against concurrent producers. Readers never take that mutex: they load an
// atomic snapshot pointer and iterate the slice it points to. A writer
// builds a new slice and swaps the pointer; a reader that loaded the old
// pointer before the swap keeps observing a complete, unmodified old
// snapshot until it is done, and the old snapshot becomes eligible for
// garbage collection once the last such reader drops it. In a
// garbage-collected runtime this copy-on-write scheme is a correct
// realization of the "deferred reclamation" spec.md requires: the grace
// period is "until the GC can prove no goroutine still holds the old
// snapshot pointer," which happens automatically.
package jobtable

import (
	"sync"
	"sync/atomic"

	"github.com/canfleet/cangw/internal/job"
)

// Table is a concurrent set of *job.Record. The zero value is ready to use.
type Table struct {
	mu       sync.Mutex // serializes writers only
	snapshot atomic.Pointer[[]*job.Record]
}

// Snapshot returns the current slice of records for lock-free iteration.
// Callers must treat the returned slice as read-only and must not retain it
// past the current dispatch — doing so would (harmlessly) just delay
// garbage collection of a stale snapshot, never cause a data race, since
// writers never mutate a published slice or its elements' configuration
// fields in place.
func (t *Table) Snapshot() []*job.Record {
	p := t.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Insert appends r to the table. O(old length) due to the copy-on-write
// rebuild; acceptable because inserts are control-plane-rate, not
// hot-path-rate.
func (t *Table) Insert(r *job.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.Snapshot()
	next := make([]*job.Record, len(old)+1)
	copy(next, old)
	next[len(old)] = r
	t.snapshot.Store(&next)
}

// RemoveFirstMatch finds and removes the first record for which match
// returns true, returning it. It returns (nil, false) if no record
// matches, the "no match" result the control plane's DELETE handler turns
// into an invalid-argument error.
func (t *Table) RemoveFirstMatch(match func(*job.Record) bool) (*job.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.Snapshot()
	idx := -1
	for i, r := range old {
		if match(r) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	next := make([]*job.Record, 0, len(old)-1)
	next = append(next, old[:idx]...)
	next = append(next, old[idx+1:]...)
	t.snapshot.Store(&next)
	return old[idx], true
}

// RemoveAll empties the table. Two consecutive calls leave the same
// (empty) state, satisfying the idempotence-of-DELETE-all law.
func (t *Table) RemoveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	empty := []*job.Record{}
	t.snapshot.Store(&empty)
}

// RemoveByDevice removes every record whose SrcDev or DstDev has the given
// interface index, returning the removed records so the caller can
// unregister their receive callbacks and drop the device references.
func (t *Table) RemoveByDevice(idx uint32) []*job.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.Snapshot()
	var removed []*job.Record
	next := make([]*job.Record, 0, len(old))
	for _, r := range old {
		if r.SrcDev.Index() == idx || r.DstDev.Index() == idx {
			removed = append(removed, r)
			continue
		}
		next = append(next, r)
	}
	t.snapshot.Store(&next)
	return removed
}

// Len reports the current number of records. Lock-free, same guarantees as
// Snapshot.
func (t *Table) Len() int {
	return len(t.Snapshot())
}
