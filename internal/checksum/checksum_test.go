package checksum

import (
	"testing"

	"github.com/canfleet/cangw/internal/canframe"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		idx  int8
		dlc  uint8
		want int
	}{
		{0, 8, 0},
		{7, 8, 7},
		{-1, 8, 7},
		{-8, 8, 0},
		{-1, 4, 3},
	}
	for _, c := range cases {
		if got := Resolve(c.idx, c.dlc); got != c.want {
			t.Errorf("Resolve(%d,%d) = %d, want %d", c.idx, c.dlc, got, c.want)
		}
	}
}

func TestValidateIndices(t *testing.T) {
	if !ValidateIndices(-8, 7, 0) {
		t.Error("boundary values should validate")
	}
	if ValidateIndices(8, 0, 0) {
		t.Error("from=8 is out of [-8,7] and must be rejected")
	}
	if ValidateIndices(0, -9, 0) {
		t.Error("to=-9 is out of [-8,7] and must be rejected")
	}
}

func TestXORDisabledSentinel(t *testing.T) {
	s := XORSpec{FromIdx: Disabled}
	if s.Enabled() {
		t.Error("FromIdx == Disabled must mean not enabled")
	}
	f := canframe.Frame{DLC: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	before := f
	RecomputeXOR(&f, s)
	if f != before {
		t.Error("disabled spec must not mutate the frame")
	}
}

func TestRecomputeXOR(t *testing.T) {
	f := canframe.Frame{DLC: 4, Data: [8]byte{0x11, 0x22, 0x33, 0x44}}
	s := XORSpec{FromIdx: 0, ToIdx: 2, ResultIdx: 3, InitXOR: 0}
	RecomputeXOR(&f, s)
	want := byte(0x11 ^ 0x22 ^ 0x33)
	if f.Data[3] != want {
		t.Errorf("data[3] = %#x, want %#x", f.Data[3], want)
	}
}

func TestRecomputeXORFromGreaterThanTo(t *testing.T) {
	// from/to reversed must give the same result as the forward order,
	// per the inclusive-min-max interpretation documented in DESIGN.md.
	fwd := canframe.Frame{DLC: 4, Data: [8]byte{0x11, 0x22, 0x33, 0x44}}
	rev := fwd
	RecomputeXOR(&fwd, XORSpec{FromIdx: 0, ToIdx: 2, ResultIdx: 3})
	RecomputeXOR(&rev, XORSpec{FromIdx: 2, ToIdx: 0, ResultIdx: 3})
	if fwd.Data[3] != rev.Data[3] {
		t.Errorf("forward=%#x reversed=%#x, want equal", fwd.Data[3], rev.Data[3])
	}
}

func TestRecomputeXORNegativeIndices(t *testing.T) {
	f := canframe.Frame{DLC: 4, Data: [8]byte{0x11, 0x22, 0x33, 0x44}}
	// -4..-2 on dlc=4 resolves to 0..2, same span as the absolute test above.
	RecomputeXOR(&f, XORSpec{FromIdx: -4, ToIdx: -2, ResultIdx: -1})
	want := byte(0x11 ^ 0x22 ^ 0x33)
	if f.Data[3] != want {
		t.Errorf("data[3] = %#x, want %#x", f.Data[3], want)
	}
}

// crc8Table builds a CRC-8 table for the given polynomial (MSB-first, the
// classic bit-at-a-time construction used by the 1-wire / SMBus CRC-8).
func crc8Table(poly byte) [256]byte {
	var tab [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for b := 0; b < 8; b++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		tab[i] = crc
	}
	return tab
}

func TestRecomputeCRC8(t *testing.T) {
	tab := crc8Table(0x07)
	f := canframe.Frame{DLC: 4, Data: [8]byte{0x11, 0x22, 0x33, 0x44}}
	s := CRC8Spec{FromIdx: 0, ToIdx: 2, ResultIdx: 3, CRCTab: tab}
	RecomputeCRC8(&f, s)

	var want byte
	for _, b := range f.Data[0:3] {
		want = tab[want^b]
	}
	if f.Data[3] != want {
		t.Errorf("data[3] = %#x, want %#x", f.Data[3], want)
	}
}

func TestRecomputeCRC8ProfileXORDLC(t *testing.T) {
	tab := crc8Table(0x07)
	f := canframe.Frame{DLC: 4, Data: [8]byte{0x11, 0x22, 0x33, 0x44}}
	s := CRC8Spec{FromIdx: 0, ToIdx: 1, ResultIdx: 3, Profile: ProfileXORDLC, CRCTab: tab}
	RecomputeCRC8(&f, s)

	crc := byte(0) ^ f.DLC
	crc = tab[crc^f.Data[0]]
	crc = tab[crc^f.Data[1]]
	if f.Data[3] != crc {
		t.Errorf("data[3] = %#x, want %#x", f.Data[3], crc)
	}
}

func TestRecomputeCRC8SpanPastDLCWithinPayload(t *testing.T) {
	tab := crc8Table(0x07)
	f := canframe.Frame{DLC: 2, Data: [8]byte{0x11, 0x22}}
	before := f
	// from=7 resolves to 7, which is >= dlc but still < MaxDLC=8, so this
	// exercises "in payload bounds but beyond the frame's own dlc" — still
	// computed, since spec only requires staying inside data[0..7].
	s := CRC8Spec{FromIdx: 7, ToIdx: 7, ResultIdx: 0, CRCTab: tab}
	RecomputeCRC8(&f, s)
	if f == before {
		t.Skip("no-op acceptable when span lies past configured dlc but within data[0..7]")
	}
}
