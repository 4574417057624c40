// Package canframe defines the CAN frame value type shared by every layer
// of the gateway: the modification pipeline, the checksum recomputer, and
// the job table's template frames all operate on Frame.
package canframe

import "encoding/binary"

// MaxDLC is the largest valid data-length code for a classic CAN frame.
const MaxDLC = 8

// Flag bits live in the upper bits of the 32-bit identifier word, matching
// the wire representation of an extended (29-bit) CAN identifier.
const (
	EFFFlag uint32 = 1 << 31 // extended frame format
	RTRFlag uint32 = 1 << 30 // remote transmission request
	ERRFlag uint32 = 1 << 29 // error frame

	IDMask uint32 = 0x1FFFFFFF // 29 significant identifier bits
)

// Frame is a mutable CAN frame: a 32-bit identifier word (flags in the high
// bits, the 29-bit CAN ID in the low bits), a data-length code in [0,8], and
// an 8-byte payload. Only the low DLC bytes of Data are semantically
// significant; bytes beyond the DLC may hold stale content and must never be
// read by a correct caller.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte

	// Owner is the loop-avoidance marker: a process-unique sentinel value
	// distinguishable from any real socket owner. Zero means "no owner."
	Owner uintptr
}

// DataWord returns the 8-byte payload as a single big-endian 64-bit word,
// the unit the SET/AND/OR/XOR DATA operations act on.
func (f Frame) DataWord() uint64 {
	return binary.BigEndian.Uint64(f.Data[:])
}

// SetDataWord stores a 64-bit word back into the 8-byte payload.
func (f *Frame) SetDataWord(w uint64) {
	binary.BigEndian.PutUint64(f.Data[:], w)
}

// Clone returns an independent copy of f; mutating the result never affects f.
// Frame has no reference fields (Data is a fixed array), so a plain value
// copy already satisfies "fully independent," but Clone exists as the
// single call site the hot path uses, per the "full copy vs shallow clone"
// distinction in the dispatch contract (see gw.Core.Dispatch).
func (f Frame) Clone() Frame {
	return f
}

// CopyTemplateFields copies only the three semantic fields (ID, DLC, data
// word) from src into dst. It must be used instead of a raw struct
// assignment whenever a configured template frame is copied into a Job
// Record: a raw copy could carry incidental zero-value padding that differs
// byte-for-byte between two otherwise-equivalent templates, breaking the
// byte-equality comparison the control plane's DELETE handler relies on.
func CopyTemplateFields(dst *Frame, src Frame) {
	dst.ID = src.ID
	dst.DLC = src.DLC
	dst.SetDataWord(src.DataWord())
}

// EqualTemplate reports whether a and b have byte-equal semantic fields
// (ID, DLC, data word), ignoring Owner, which is dispatch-time state rather
// than configuration.
func EqualTemplate(a, b Frame) bool {
	return a.ID == b.ID && a.DLC == b.DLC && a.DataWord() == b.DataWord()
}

// Filter is a (can_id, can_mask) pair. A frame matches iff
// (frame.ID & Mask) == (CANID & Mask), the delivery-subsystem matching rule.
// The all-zero filter matches every frame.
type Filter struct {
	CANID uint32
	Mask  uint32
}

// Match reports whether id satisfies the filter.
func (f Filter) Match(id uint32) bool {
	return (id & f.Mask) == (f.CANID & f.Mask)
}
