// Package checksum implements the two checksum recomputation kinds a job
// may enable: a running XOR and a table-driven CRC8, both applied over a
// byte span of the frame's payload after the modification pipeline runs.
package checksum

import "github.com/canfleet/cangw/internal/canframe"

// Disabled is the sentinel value of FromIdx that marks a spec inactive.
const Disabled int8 = 42

// CRC8Profile selects an extension to the running CRC8 computation.
type CRC8Profile uint8

const (
	ProfileUnspec CRC8Profile = iota
	ProfileXORValue
	ProfileXORDLC
)

// XORSpec computes acc = InitXOR ^ data[lo] ^ ... ^ data[hi] and stores the
// result at data[ResultIdx].
type XORSpec struct {
	FromIdx, ToIdx, ResultIdx int8
	InitXOR                   byte
}

// Enabled reports whether the spec is active (FromIdx != Disabled).
func (s XORSpec) Enabled() bool { return s.FromIdx != Disabled }

// CRC8Spec computes an 8-bit CRC over data[lo..hi] using CRCTab, optionally
// extended per Profile, and stores the result at data[ResultIdx].
type CRC8Spec struct {
	FromIdx, ToIdx, ResultIdx int8
	Profile                   CRC8Profile
	InitCRC                   byte
	XORValue                  byte // used only when Profile == ProfileXORValue
	CRCTab                    [256]byte
}

// Enabled reports whether the spec is active (FromIdx != Disabled).
func (s CRC8Spec) Enabled() bool { return s.FromIdx != Disabled }

// Resolve turns a signed index in [-8,7] into an absolute byte offset given
// the frame's actual DLC: non-negative values are absolute, negative values
// count back from the end of the valid payload (-1 is the last byte, -8 is
// the first).
func Resolve(idx int8, dlc uint8) int {
	if idx >= 0 {
		return int(idx)
	}
	return int(dlc) + int(idx)
}

// ValidateIndices reports whether from, to, result all lie in [-8,7], the
// range check `cgw_chk_csum_parms` performs at install time. It does not
// check the resolved indices against dlc; that happens per-frame because
// dlc varies per frame while the job's configured indices do not.
func ValidateIndices(from, to, result int8) bool {
	return inRange(from) && inRange(to) && inRange(result)
}

func inRange(i int8) bool {
	return i >= -8 && i <= 7
}

// span returns the inclusive [lo,hi] byte range to walk, accepting from/to
// in either order (see DESIGN.md's Open Question decision: walk inclusively
// from min to max).
func span(from, to int8, dlc uint8) (lo, hi int) {
	lo = Resolve(from, dlc)
	hi = Resolve(to, dlc)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// inBounds reports whether [lo,hi] lies entirely within the valid 8-byte
// payload, the invariant callers must hold before indexing Data.
func inBounds(lo, hi int) bool {
	return lo >= 0 && hi < canframe.MaxDLC && lo <= hi
}

// RecomputeXOR applies s to f.Data, writing the result at data[ResultIdx].
// It is a no-op if s is disabled or if the resolved span or result index
// falls outside the 8-byte payload (install-time validation does not rule
// this out: a negative index on a frame with a small dlc resolves below 0).
func RecomputeXOR(f *canframe.Frame, s XORSpec) {
	if !s.Enabled() {
		return
	}
	lo, hi := span(s.FromIdx, s.ToIdx, f.DLC)
	if !inBounds(lo, hi) {
		return
	}
	out := Resolve(s.ResultIdx, f.DLC)
	if out < 0 || out >= canframe.MaxDLC {
		return
	}

	acc := s.InitXOR
	for i := lo; i <= hi; i++ {
		acc ^= f.Data[i]
	}
	f.Data[out] = acc
}

// RecomputeCRC8 applies s to f.Data, writing the result at data[ResultIdx].
func RecomputeCRC8(f *canframe.Frame, s CRC8Spec) {
	if !s.Enabled() {
		return
	}
	lo, hi := span(s.FromIdx, s.ToIdx, f.DLC)
	if !inBounds(lo, hi) {
		return
	}
	out := Resolve(s.ResultIdx, f.DLC)
	if out < 0 || out >= canframe.MaxDLC {
		return
	}

	crc := s.InitCRC
	switch s.Profile {
	case ProfileXORValue:
		crc ^= s.XORValue
	case ProfileXORDLC:
		crc ^= f.DLC
	}

	for i := lo; i <= hi; i++ {
		crc = s.CRCTab[crc^f.Data[i]]
	}
	f.Data[out] = crc
}
