package job

import (
	"testing"

	"github.com/canfleet/cangw/internal/canframe"
	"github.com/canfleet/cangw/internal/checksum"
	"github.com/canfleet/cangw/internal/modpipe"
)

func TestEqualByBytes(t *testing.T) {
	prog := modpipe.Build(modpipe.Slot{Op: modpipe.OpSET, Mask: modpipe.TypeID, Template: canframe.Frame{ID: 0x42}})
	mod := Mod{Program: prog, XOR: checksum.XORSpec{FromIdx: checksum.Disabled}, CRC8: checksum.CRC8Spec{FromIdx: checksum.Disabled}}
	ccgw := CCGW{Filter: canframe.Filter{CANID: 1, Mask: 0x7FF}, SrcIdx: 1, DstIdx: 2}

	r := Acquire()
	r.Flags = FlagECHO
	r.Filter = ccgw.Filter
	r.SrcIdx = ccgw.SrcIdx
	r.DstIdx = ccgw.DstIdx
	r.Mod = mod

	if !r.EqualByBytes(FlagECHO, mod, ccgw) {
		t.Error("identical (flags, mod, ccgw) must match")
	}
	if r.EqualByBytes(0, mod, ccgw) {
		t.Error("differing flags must not match")
	}

	other := ccgw
	other.DstIdx = 3
	if r.EqualByBytes(FlagECHO, mod, other) {
		t.Error("differing dst index must not match")
	}
}

func TestAcquireReturnsZeroedRecord(t *testing.T) {
	r := Acquire()
	r.SrcIdx = 7
	r.Handled.Store(5)
	Release(r)

	r2 := Acquire()
	if r2.SrcIdx != 0 || r2.Handled.Load() != 0 {
		t.Errorf("Acquire must return a zeroed record, got SrcIdx=%d Handled=%d", r2.SrcIdx, r2.Handled.Load())
	}
}
