package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/canfleet/cangw/internal/canframe"
)

// FakeRegistry is an in-memory Registry used by internal/gw's tests and by
// jobtable's tests, so the hot path and control-plane logic are exercised
// without real network namespaces or root privilege.
type FakeRegistry struct {
	mu   sync.Mutex
	devs map[uint32]*FakeDev
}

// NewFakeRegistry builds a registry with the given devices, keyed by index.
func NewFakeRegistry(devs ...*FakeDev) *FakeRegistry {
	r := &FakeRegistry{devs: make(map[uint32]*FakeDev)}
	for _, d := range devs {
		r.devs[d.idx] = d
	}
	return r
}

func (r *FakeRegistry) DevByIndex(idx uint32) (Dev, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devs[idx]
	if !ok {
		return nil, false
	}
	d.refs.Add(1)
	return d, true
}

func (r *FakeRegistry) DevPut(d Dev) {
	fd, ok := d.(*FakeDev)
	if !ok {
		return
	}
	fd.refs.Add(-1)
}

// Unregister simulates a device-unregister event, removing d from the
// registry so subsequent DevByIndex calls fail.
func (r *FakeRegistry) Unregister(idx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devs, idx)
}

type rxEntry struct {
	filter canframe.Filter
	cb     ReceiveFunc
	cookie any
}

// FakeDev is a test-double device: it tracks administrative up/down state,
// registered receive callbacks, and sent frames, and can simulate an
// incoming frame via Inject.
type FakeDev struct {
	idx     uint32
	name    string
	isCAN   bool
	up      atomic.Bool
	refs    atomic.Int32

	mu    sync.Mutex
	rx    []rxEntry
	sent  []SentFrame
	sendErr error
}

// SentFrame records one call to Send, for test assertions.
type SentFrame struct {
	Frame canframe.Frame
	Echo  bool
}

// NewFakeDev builds an up, CAN-type fake device with the given index/name.
func NewFakeDev(idx uint32, name string) *FakeDev {
	d := &FakeDev{idx: idx, name: name, isCAN: true}
	d.up.Store(true)
	return d
}

func (d *FakeDev) Index() uint32 { return d.idx }
func (d *FakeDev) Name() string  { return d.name }
func (d *FakeDev) IsCAN() bool   { return d.isCAN }
func (d *FakeDev) IsUp() bool    { return d.up.Load() }

// SetUp sets the administrative up/down state, for the device-down drop
// scenario.
func (d *FakeDev) SetUp(up bool) { d.up.Store(up) }

// SetSendErr forces Send to fail, for the duplication/send-failure paths.
func (d *FakeDev) SetSendErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendErr = err
}

func (d *FakeDev) RegisterRX(filter canframe.Filter, cb ReceiveFunc, cookie any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx = append(d.rx, rxEntry{filter: filter, cb: cb, cookie: cookie})
	return nil
}

func (d *FakeDev) UnregisterRX(filter canframe.Filter, cookie any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.rx[:0]
	for _, e := range d.rx {
		if e.filter == filter && e.cookie == cookie {
			continue
		}
		out = append(out, e)
	}
	d.rx = out
}

func (d *FakeDev) Send(frame canframe.Frame, echo bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, SentFrame{Frame: frame, Echo: echo})
	return nil
}

// Sent returns the frames passed to Send so far.
func (d *FakeDev) Sent() []SentFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SentFrame, len(d.sent))
	copy(out, d.sent)
	return out
}

// Refs returns the current reference count, for ownership assertions.
func (d *FakeDev) Refs() int32 { return d.refs.Load() }

// Inject simulates reception of frame on this device: every registered
// callback whose filter matches frame.ID is invoked synchronously, on the
// calling goroutine — mirroring soft-interrupt-level delivery closely
// enough for deterministic tests.
func (d *FakeDev) Inject(frame canframe.Frame) {
	d.mu.Lock()
	entries := make([]rxEntry, len(d.rx))
	copy(entries, d.rx)
	d.mu.Unlock()

	for _, e := range entries {
		if e.filter.Match(frame.ID) {
			e.cb(frame, e.cookie)
		}
	}
}

func (d *FakeDev) String() string {
	return fmt.Sprintf("FakeDev(%d,%s)", d.idx, d.name)
}
