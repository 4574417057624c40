package modpipe

import (
	"testing"

	"github.com/canfleet/cangw/internal/canframe"
	"pgregory.net/rapid"
)

func TestApplySetID(t *testing.T) {
	prog := Build(Slot{Op: OpSET, Mask: TypeID, Template: canframe.Frame{ID: 0x7FF}})
	f := canframe.Frame{ID: 0x123}
	Apply(&f, prog)
	if f.ID != 0x7FF {
		t.Errorf("ID = %#x, want 0x7FF", f.ID)
	}
}

func TestApplyAndThenOrOnData(t *testing.T) {
	prog := Build(
		Slot{Op: OpAND, Mask: TypeData, Template: dataFrame(0x00FFFFFFFFFFFFFF)},
		Slot{Op: OpOR, Mask: TypeData, Template: dataFrame(0xAA00000000000000)},
	)
	f := dataFrame(0x1122334455667788)
	f.ID = 1
	f.DLC = 8
	Apply(&f, prog)
	if got := f.DataWord(); got != 0xAA22334455667788 {
		t.Errorf("data = %#x, want 0xAA22334455667788", got)
	}
}

func TestEmptyProgramIsNoop(t *testing.T) {
	prog := Build()
	if !prog.Empty() {
		t.Fatal("Build() with no slots must produce an empty program")
	}
	f := canframe.Frame{ID: 0x123, DLC: 2, Data: [8]byte{0xAA, 0xBB}}
	before := f
	Apply(&f, prog)
	if f != before {
		t.Errorf("empty program must not mutate the frame: got %+v, want %+v", f, before)
	}
}

func TestInactiveSlotContributesNothing(t *testing.T) {
	prog := Build(Slot{Op: OpSET, Mask: 0, Template: canframe.Frame{ID: 0x7FF}})
	if !prog.Empty() {
		t.Error("a slot with a zero type mask must be inactive")
	}
}

func dataFrame(w uint64) canframe.Frame {
	var f canframe.Frame
	f.SetDataWord(w)
	return f
}

// TestOrderOfOperationsLaw checks spec's law: applying the assembled
// program in AND->OR->XOR->SET slot order produces the same result as
// applying each active slot's field operations sequentially in that same
// slot order, for arbitrary slot configurations and frames.
func TestOrderOfOperationsLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		slots := []Slot{
			genSlot(t, OpAND),
			genSlot(t, OpOR),
			genSlot(t, OpXOR),
			genSlot(t, OpSET),
		}
		f0 := genFrame(t)

		prog := Build(slots...)
		got := f0
		Apply(&got, prog)

		want := f0
		for _, s := range slots {
			if !s.Active() {
				continue
			}
			Apply(&want, Build(s))
		}

		if got != want {
			t.Fatalf("program result %+v != sequential-slot result %+v", got, want)
		}
	})
}

func genSlot(t *rapid.T, op Operator) Slot {
	mask := TypeMask(rapid.IntRange(0, 7).Draw(t, "mask"))
	return Slot{
		Op:       op,
		Mask:     mask,
		Template: genFrame(t),
	}
}

func genFrame(t *rapid.T) canframe.Frame {
	var f canframe.Frame
	f.ID = rapid.Uint32().Draw(t, "id")
	f.DLC = uint8(rapid.IntRange(0, 8).Draw(t, "dlc"))
	f.SetDataWord(rapid.Uint64().Draw(t, "data"))
	return f
}
