package gw

import (
	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/device"
	"github.com/canfleet/cangw/internal/job"
	"github.com/canfleet/cangw/internal/modpipe"
)

// Family is the control-plane header's protocol family field. CAN is the
// only value Create accepts.
type Family uint16

// FamilyCAN is the only protocol family this gateway supports.
const FamilyCAN Family = 29

// CreateRequest is the logical content of a CREATE (NEW verb) request:
// header fields plus the MOD_*, CS_XOR, CS_CRC8, FILTER, SRC_IF, DST_IF
// attributes spec.md §6 lists.
type CreateRequest struct {
	Family Family
	GWType job.GWType
	Flags  job.Flags

	Slots []modpipe.Slot // AND, OR, XOR, SET, in that order; inactive slots allowed

	XOR  checksum.XORSpec
	CRC8 checksum.CRC8Spec

	Filter canframe.Filter // zero value means match-all

	SrcIdx uint32
	DstIdx uint32
}

// Create validates req (header checks, then attributes, then range checks,
// then device resolution last, per spec.md §4.5's validation ordering) and,
// on success, publishes a new Job Record and registers its receive
// callback with the delivery subsystem.
func (c *Core) Create(req CreateRequest) (*job.Record, error) {
	// Header checks (cheap rejects) first: family before gwtype.
	if req.Family != FamilyCAN {
		return nil, newErr(KindProtocolFamilyNotSupported, "family %d", req.Family)
	}
	if req.GWType != job.GWTypeCANCAN {
		return nil, newErr(KindInvalidArgument, "unsupported gwtype %d", req.GWType)
	}

	// Attribute/range checks next, before any device resolution (which
	// acquires references that must be released on failure).
	if req.XOR.Enabled() && !checksum.ValidateIndices(req.XOR.FromIdx, req.XOR.ToIdx, req.XOR.ResultIdx) {
		return nil, newErr(KindInvalidArgument, "CS_XOR indices out of [-8,7]")
	}
	if req.CRC8.Enabled() && !checksum.ValidateIndices(req.CRC8.FromIdx, req.CRC8.ToIdx, req.CRC8.ResultIdx) {
		return nil, newErr(KindInvalidArgument, "CS_CRC8 indices out of [-8,7]")
	}
	if req.SrcIdx == 0 || req.DstIdx == 0 {
		return nil, newErr(KindInvalidArgument, "src_idx and dst_idx must both be nonzero")
	}

	// Device resolution last: it acquires references that must be released
	// on any subsequent failure.
	srcDev, ok := c.Registry.DevByIndex(req.SrcIdx)
	if !ok {
		return nil, newErr(KindNoSuchDevice, "src index %d", req.SrcIdx)
	}
	dstDev, ok := c.Registry.DevByIndex(req.DstIdx)
	if !ok {
		c.Registry.DevPut(srcDev)
		return nil, newErr(KindNoSuchDevice, "dst index %d", req.DstIdx)
	}
	if !srcDev.IsCAN() || !dstDev.IsCAN() {
		c.Registry.DevPut(srcDev)
		c.Registry.DevPut(dstDev)
		return nil, newErr(KindNoSuchDevice, "src/dst must both be CAN devices")
	}

	r := job.Acquire()
	r.GWType = req.GWType
	r.Flags = req.Flags
	r.SrcIdx = req.SrcIdx
	r.DstIdx = req.DstIdx
	r.SrcDev = srcDev
	r.DstDev = dstDev
	r.Filter = req.Filter
	r.Mod = job.Mod{
		Program: modpipe.Build(req.Slots...),
		XOR:     req.XOR,
		CRC8:    req.CRC8,
	}

	cb := func(frame canframe.Frame, cookie any) {
		Dispatch(cookie.(*job.Record), frame)
	}
	if err := srcDev.RegisterRX(r.Filter, cb, r); err != nil {
		c.Registry.DevPut(srcDev)
		c.Registry.DevPut(dstDev)
		job.Release(r)
		return nil, newErr(KindOutOfMemory, "register_rx: %v", err)
	}

	c.Table.Insert(r)
	c.Log.Info("job created", "src", srcDev.Name(), "dst", dstDev.Name(), "filter", r.Filter)
	return r, nil
}

// DeleteRequest is the logical content of a DELETE (DEL verb) request.
type DeleteRequest struct {
	Flags job.Flags
	Mod   job.Mod
	CCGW  job.CCGW
}

// Delete removes the first record matching req's (flags, mod, ccgw) triple.
// Both indices zero is the special "remove everything" case.
func (c *Core) Delete(req DeleteRequest) error {
	if req.CCGW.SrcIdx == 0 && req.CCGW.DstIdx == 0 {
		for _, r := range c.Table.Snapshot() {
			r.SrcDev.UnregisterRX(r.Filter, r)
			c.Registry.DevPut(r.SrcDev)
			c.Registry.DevPut(r.DstDev)
		}
		c.Table.RemoveAll()
		c.Log.Info("all jobs removed")
		return nil
	}

	r, ok := c.Table.RemoveFirstMatch(func(r *job.Record) bool {
		return r.EqualByBytes(req.Flags, req.Mod, req.CCGW)
	})
	if !ok {
		return newErr(KindInvalidArgument, "no matching job")
	}

	r.SrcDev.UnregisterRX(r.Filter, r)
	c.Registry.DevPut(r.SrcDev)
	c.Registry.DevPut(r.DstDev)
	c.Log.Info("job removed", "src", r.SrcDev.Name(), "dst", r.DstDev.Name())
	return nil
}

// Descriptor is one DUMP response record: a job's current attributes and
// counters.
type Descriptor struct {
	GWType job.GWType
	Flags  job.Flags
	SrcIdx uint32
	DstIdx uint32
	Filter canframe.Filter
	Handled uint32
	Dropped uint32
}

// Dump emits descriptors starting at cursor (an index into the table's
// current snapshot), filling at most len(out) entries, and returns the
// number written plus the cursor to resume from on the next call. If out is
// too small to hold even one more record where records remain, it returns
// ErrDumpBufferFull without advancing the cursor, so a retry with a larger
// buffer resumes at the same record.
func (c *Core) Dump(cursor int, out []Descriptor) (n int, nextCursor int, err error) {
	snap := c.Table.Snapshot()
	if cursor < 0 || cursor > len(snap) {
		return 0, cursor, newErr(KindInvalidArgument, "cursor %d out of range", cursor)
	}
	if cursor < len(snap) && len(out) == 0 {
		return 0, cursor, ErrDumpBufferFull
	}

	i := cursor
	for n < len(out) && i < len(snap) {
		r := snap[i]
		out[n] = Descriptor{
			GWType:  r.GWType,
			Flags:   r.Flags,
			SrcIdx:  r.SrcIdx,
			DstIdx:  r.DstIdx,
			Filter:  r.Filter,
			Handled: r.Handled.Load(),
			Dropped: r.Dropped.Load(),
		}
		n++
		i++
	}
	return n, i, nil
}

// HandleDeviceUnregister removes every job referencing the unregistering
// device, unregisters their receive callbacks, and drops the gateway's
// references on the device — called from the device-event reactor (e.g.
// fed by device.UdevWatcher) before the device's refcount is expected to
// reach zero.
func (c *Core) HandleDeviceUnregister(ev device.UnregisterEvent) {
	removed := c.Table.RemoveByDevice(ev.Idx)
	for _, r := range removed {
		r.SrcDev.UnregisterRX(r.Filter, r)
		c.Registry.DevPut(r.SrcDev)
		c.Registry.DevPut(r.DstDev)
	}
	if len(removed) > 0 {
		c.Log.Info("device unregistered, jobs removed", "device", ev.Name, "count", len(removed))
	}
}
