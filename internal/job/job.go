// Package job defines the Job Record: the value type describing one
// gateway binding, and the object pool it is allocated from.
package job

import (
	"sync"
	"sync/atomic"

	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/device"
	"github.com/canfleet/cangw/internal/modpipe"
)

// GWType identifies the routing kind. CAN_CAN is the only kind defined.
type GWType uint8

const GWTypeCANCAN GWType = 0

// Flags is a bit set over the job-level behavior flags.
type Flags uint16

const (
	FlagECHO      Flags = 1 << 0
	FlagSrcTstamp Flags = 1 << 1
)

// Mod is a job's complete modification configuration: the field-op program
// plus the two independently-enabled checksum specs.
type Mod struct {
	Program  modpipe.Program
	XOR      checksum.XORSpec
	CRC8     checksum.CRC8Spec
}

// CCGW carries the fields DELETE matches on alongside Flags and Mod: the
// filter and the two interface indices, mirroring the source payload a
// control-plane DELETE request supplies.
type CCGW struct {
	Filter  canframe.Filter
	SrcIdx  uint32
	DstIdx  uint32
}

// Record is one gateway binding: source/destination interfaces, the
// dispatch filter, the modification program, and running counters. A
// published Record's src_idx/dst_idx/src_dev/dst_dev/filter/mod fields are
// immutable; only Handled/Dropped are mutated after publication, and only
// by the hot path.
type Record struct {
	GWType GWType
	Flags  Flags

	SrcIdx uint32
	DstIdx uint32
	SrcDev device.Dev
	DstDev device.Dev

	Filter canframe.Filter
	Mod    Mod

	Handled atomic.Uint32
	Dropped atomic.Uint32
}

// EqualByBytes reports whether r and other have byte-equal (Flags, Mod,
// CCGW) triples, the identity DELETE matches on. Counters and device
// handles are intentionally excluded.
func (r *Record) EqualByBytes(flags Flags, mod Mod, ccgw CCGW) bool {
	if r.Flags != flags {
		return false
	}
	if r.Filter != ccgw.Filter || r.SrcIdx != ccgw.SrcIdx || r.DstIdx != ccgw.DstIdx {
		return false
	}
	return modEqual(r.Mod, mod)
}

func modEqual(a, b Mod) bool {
	if a.XOR != b.XOR || a.CRC8 != b.CRC8 {
		return false
	}
	// Program equality is defined by effect, not by op sequence. Since
	// Program only exposes Apply/Build/Empty, compare by re-deriving the
	// byte-visible effect on a zero frame and on an all-ones frame, which is
	// sufficient to distinguish any two AND/OR/XOR/SET programs with
	// different effects over a fixed field set.
	var fa0, fb0 canframe.Frame
	modpipe.Apply(&fa0, a.Program)
	modpipe.Apply(&fb0, b.Program)
	if fa0 != fb0 {
		return false
	}
	fa1 := canframe.Frame{ID: 0xFFFFFFFF, DLC: 0xFF, Data: [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
	fb1 := fa1
	modpipe.Apply(&fa1, a.Program)
	modpipe.Apply(&fb1, b.Program)
	return fa1 == fb1
}

var pool = sync.Pool{
	New: func() any { return new(Record) },
}

// Acquire returns a zeroed Record drawn from the shared pool, amortizing
// allocation cost as spec's §5 "Allocation" prefers (not a correctness
// requirement).
func Acquire() *Record {
	r := pool.Get().(*Record)
	*r = Record{}
	return r
}

// Release returns r to the pool. It is only safe to call on the CREATE
// rollback path, before r has ever been published into a job table
// snapshot — a Record a reader might still observe must instead be left to
// the garbage collector once its snapshot becomes unreachable (see
// jobtable's copy-on-write reclamation), never handed back to this pool for
// reuse while a stale snapshot could still reference it.
func Release(r *Record) {
	pool.Put(r)
}
