package device

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/canfleet/cangw/internal/canframe"
)

// NetlinkRegistry resolves interface indices to real Linux network links
// via github.com/vishvananda/netlink. CAN interfaces (can0, vcan0, ...) are
// ordinary netlink links of type "can" (or "vcan"), so LinkByIndex and the link's
// IFF_UP flag are a literal realization of spec.md §6's dev_by_index and
// "lifecycle up/down flags."
type NetlinkRegistry struct {
	mu   sync.Mutex
	devs map[uint32]*netlinkDev
}

// NewNetlinkRegistry builds an empty registry; devices are created lazily
// on first DevByIndex call and cached by index.
func NewNetlinkRegistry() *NetlinkRegistry {
	return &NetlinkRegistry{devs: make(map[uint32]*netlinkDev)}
}

func (r *NetlinkRegistry) DevByIndex(idx uint32) (Dev, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devs[idx]; ok {
		d.refs.Add(1)
		return d, true
	}

	link, err := netlink.LinkByIndex(int(idx))
	if err != nil {
		return nil, false
	}

	d := &netlinkDev{idx: idx, link: link, sockFD: -1}
	d.refs.Store(1)
	r.devs[idx] = d
	return d, true
}

func (r *NetlinkRegistry) DevPut(d Dev) {
	nd, ok := d.(*netlinkDev)
	if !ok {
		return
	}
	if nd.refs.Add(-1) > 0 {
		return
	}

	r.mu.Lock()
	if cur, ok := r.devs[nd.idx]; ok && cur == nd {
		delete(r.devs, nd.idx)
	}
	r.mu.Unlock()
	nd.closeSocket()
}

// Forget drops a cached device unconditionally, so a later DevByIndex for
// the same (recycled) index resolves fresh state instead of a stale cache
// entry. Nothing in this repository calls it; DevPut already drops the
// cache entry once the last reference is released.
func (r *NetlinkRegistry) Forget(idx uint32) {
	r.mu.Lock()
	d, ok := r.devs[idx]
	if ok {
		delete(r.devs, idx)
	}
	r.mu.Unlock()

	if ok {
		d.closeSocket()
	}
}

// canFrameSize is sizeof(struct can_frame) from linux/can.h: a 4-byte
// canid_t, a DLC byte, 3 pad bytes, and 8 bytes of data aligned on an
// 8-byte boundary.
const canFrameSize = 16

// encodeCANFrame marshals f into the kernel's struct can_frame layout.
// can_id carries the same EFF/RTR/ERR flag bits and 29-bit identifier
// canframe.Frame already uses, so no bit rearrangement is needed beyond
// picking a byte order; canid_t is a plain __u32 read back by the host in
// its native order, which is little-endian on every architecture this
// gateway targets (x86-64, arm64).
func encodeCANFrame(f canframe.Frame) [canFrameSize]byte {
	var buf [canFrameSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.DLC
	copy(buf[8:16], f.Data[:])
	return buf
}

func decodeCANFrame(buf []byte) canframe.Frame {
	var f canframe.Frame
	f.ID = binary.LittleEndian.Uint32(buf[0:4])
	f.DLC = buf[4]
	copy(f.Data[:], buf[8:16])
	return f
}

type netlinkDev struct {
	idx  uint32
	link netlink.Link
	refs atomic.Int32

	mu sync.Mutex
	rx []rxEntry

	sockMu sync.Mutex
	sockFD int // -1 when no raw CAN socket is open yet
}

func (d *netlinkDev) Index() uint32 { return d.idx }
func (d *netlinkDev) Name() string  { return d.link.Attrs().Name }

func (d *netlinkDev) IsCAN() bool {
	t := d.link.Type()
	return t == "can" || t == "vcan"
}

// IsUp reports the link's up flag as captured when the registry first
// resolved the index; the cached link attributes are not refreshed, so a
// later up/down change of the interface is not observed here.
func (d *netlinkDev) IsUp() bool {
	return d.link.Attrs().Flags&net.FlagUp != 0
}

// ensureSocket opens and binds the AF_CAN/SOCK_RAW socket backing both
// Send and the receive path on first use, and returns the cached fd on
// every subsequent call. One socket per device is shared by every job
// that sources from or sends to it.
func (d *netlinkDev) ensureSocket() (int, error) {
	d.sockMu.Lock()
	defer d.sockMu.Unlock()

	if d.sockFD >= 0 {
		return d.sockFD, nil
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return -1, fmt.Errorf("socket(AF_CAN, SOCK_RAW): %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: int(d.idx)}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", d.Name(), err)
	}

	d.sockFD = fd
	go d.readLoop(fd)
	return fd, nil
}

func (d *netlinkDev) closeSocket() {
	d.sockMu.Lock()
	defer d.sockMu.Unlock()
	if d.sockFD < 0 {
		return
	}
	unix.Close(d.sockFD)
	d.sockFD = -1
}

// readLoop pumps frames off fd, one can_frame per read (SOCK_RAW CAN
// sockets deliver exactly one frame per successful read), and dispatches
// each to the registered callbacks whose filter matches. It returns once
// the socket is closed out from under it.
func (d *netlinkDev) readLoop(fd int) {
	buf := make([]byte, canFrameSize)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil || n < canFrameSize {
			return
		}
		d.dispatch(decodeCANFrame(buf))
	}
}

func (d *netlinkDev) dispatch(frame canframe.Frame) {
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

func (d *netlinkDev) RegisterRX(filter canframe.Filter, cb ReceiveFunc, cookie any) error {
	if _, err := d.ensureSocket(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx = append(d.rx, rxEntry{filter: filter, cb: cb, cookie: cookie})
	return nil
}

func (d *netlinkDev) UnregisterRX(filter canframe.Filter, cookie any) {
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

// Send transmits frame on the device's raw CAN socket. When echo is set,
// the frame is additionally dispatched to this device's own registered
// callbacks, matching spec.md §6's "observable on the sending interface's
// own receive path": frame.Owner is already the gateway's loop-avoidance
// sentinel by the time Dispatch calls Send, so a cross-registered job on
// the other side of this same device sees the echoed frame rejected at
// Dispatch's loop-avoidance step rather than forwarded again.
func (d *netlinkDev) Send(frame canframe.Frame, echo bool) error {
	fd, err := d.ensureSocket()
	if err != nil {
		return err
	}

	buf := encodeCANFrame(frame)
	if _, err := unix.Write(fd, buf[:]); err != nil {
		return fmt.Errorf("write %s: %w", d.Name(), err)
	}

	if echo {
		d.dispatch(frame)
	}
	return nil
}
