package device

import (
	"testing"

	"github.com/canfleet/cangw/internal/canframe"
)

func TestCANFrameRoundTrip(t *testing.T) {
	frame := canframe.Frame{ID: 0x1ABCDEF | canframe.EFFFlag, DLC: 8}
	copy(frame.Data[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	buf := encodeCANFrame(frame)
	if len(buf) != canFrameSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), canFrameSize)
	}

	got := decodeCANFrame(buf[:])
	if got.ID != frame.ID {
		t.Errorf("ID = %#x, want %#x", got.ID, frame.ID)
	}
	if got.DLC != frame.DLC {
		t.Errorf("DLC = %d, want %d", got.DLC, frame.DLC)
	}
	if got.Data != frame.Data {
		t.Errorf("Data = %v, want %v", got.Data, frame.Data)
	}
}

func TestCANFrameRoundTripStandardID(t *testing.T) {
	frame := canframe.Frame{ID: 0x123, DLC: 3}
	copy(frame.Data[:], []byte{0xAA, 0xBB, 0xCC})

	buf := encodeCANFrame(frame)
	got := decodeCANFrame(buf[:])

	if got.ID != 0x123 || got.ID&canframe.EFFFlag != 0 {
		t.Errorf("ID = %#x, want standard 0x123 with no EFF flag", got.ID)
	}
	if got.DLC != 3 {
		t.Errorf("DLC = %d, want 3", got.DLC)
	}
}
