package gw

import (
	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/job"
	"github.com/canfleet/cangw/internal/modpipe"
)

// Dispatch is the hot path: invoked by the delivery subsystem once per
// frame matching r's registered filter, with r as the opaque cookie. It is
// non-blocking and non-suspending: no sleep, no I/O wait, no unbounded
// loop, no logging.
//
// Steps follow spec.md §4.4 exactly:
//  1. loop avoidance
//  2. destination liveness
//  3. frame duplication
//  4. mark
//  5. retarget (implicit: r.DstDev is the send target)
//  6. apply program
//  7. recompute checksums
//  8. timestamp (not modeled: this frame representation carries no receive
//     timestamp field to clear; SRC_TSTAMP is a no-op placeholder here)
//  9. send
func Dispatch(r *job.Record, frame canframe.Frame) {
	// 1. Loop avoidance.
	if frame.Owner == gatewayOwner {
		return
	}

	// 2. Destination liveness.
	if !r.DstDev.IsUp() {
		r.Dropped.Add(1)
		return
	}

	// 3. Frame duplication. A full copy is required whenever the program
	// will mutate the payload independently of the original; canframe.Frame
	// has no reference-typed fields, so Clone already performs a full,
	// independently-mutable copy either way. The distinction in spec.md
	// exists because the source's packet_t carries a separately-allocated
	// payload buffer that a shallow clone could share; Go's fixed-size
	// array field makes every copy a full copy, so this step cannot fail.
	dup := frame.Clone()

	// 4. Mark.
	dup.Owner = gatewayOwner

	// 6. Apply program.
	modpipe.Apply(&dup, r.Mod.Program)

	// 7. Recompute checksums, only if the program was non-empty.
	if !r.Mod.Program.Empty() {
		checksum.RecomputeXOR(&dup, r.Mod.XOR)
		checksum.RecomputeCRC8(&dup, r.Mod.CRC8)
	}

	// 9. Send. 5. (retarget) is implicit in calling Send on DstDev.
	echo := r.Flags&job.FlagECHO != 0
	if err := r.DstDev.Send(dup, echo); err != nil {
		r.Dropped.Add(1)
		return
	}
	r.Handled.Add(1)
}
