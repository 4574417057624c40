package canframe

import "testing"

func TestFilterMatch(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		id     uint32
		want   bool
	}{
		{"match-all", Filter{}, 0x123, true},
		{"exact-match", Filter{CANID: 0x123, Mask: 0x7FF}, 0x123, true},
		{"mismatch", Filter{CANID: 0x123, Mask: 0x7FF}, 0x124, false},
		{"masked-bits-ignored", Filter{CANID: 0x100, Mask: 0x700}, 0x1FF, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.filter.Match(c.id); got != c.want {
				t.Errorf("Match(%#x) = %v, want %v", c.id, got, c.want)
			}
		})
	}
}

func TestDataWordRoundTrip(t *testing.T) {
	var f Frame
	f.SetDataWord(0x1122334455667788)
	if got := f.DataWord(); got != 0x1122334455667788 {
		t.Errorf("DataWord() = %#x, want 0x1122334455667788", got)
	}
	want := [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if f.Data != want {
		t.Errorf("Data = %v, want %v", f.Data, want)
	}
}

func TestCopyTemplateFieldsIgnoresOwner(t *testing.T) {
	src := Frame{ID: 0x42, DLC: 3, Owner: 0xDEAD}
	src.SetDataWord(0xAABBCCDDEEFF0011)

	var dst Frame
	dst.Owner = 0xBEEF
	CopyTemplateFields(&dst, src)

	if !EqualTemplate(dst, src) {
		t.Errorf("CopyTemplateFields did not produce a template-equal copy: dst=%+v src=%+v", dst, src)
	}
	if dst.Owner != 0xBEEF {
		t.Errorf("CopyTemplateFields must not touch Owner, got %#x", dst.Owner)
	}
}

func TestEqualTemplateIgnoresOwner(t *testing.T) {
	a := Frame{ID: 1, DLC: 2, Owner: 1}
	b := Frame{ID: 1, DLC: 2, Owner: 2}
	if !EqualTemplate(a, b) {
		t.Error("EqualTemplate should ignore Owner")
	}
	b.DLC = 3
	if EqualTemplate(a, b) {
		t.Error("EqualTemplate should compare DLC")
	}
}
