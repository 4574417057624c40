// Package device wraps the delivery-subsystem and device-registry
// collaborators spec.md §6 specifies only by interface: register_rx /
// unregister_rx / send, dev_by_index, and lifecycle up/down flags. It also
// provides concrete implementations backed by real Linux networking
// (github.com/vishvananda/netlink) and real udev device-removal
// notifications (github.com/jochenvg/go-udev), plus a test double.
package device

import "github.com/canfleet/cangw/internal/canframe"

// ReceiveFunc is the per-job receive callback the delivery subsystem
// invokes once per frame matching the job's filter. cookie is the opaque
// job-identifying value passed back unchanged, matching spec.md §6's
// register_rx(..., cookie) contract.
type ReceiveFunc func(frame canframe.Frame, cookie any)

// Dev is a resolved device handle: enough identity and liveness
// information for the hot path and control plane to operate on, plus the
// two delivery-subsystem primitives (register/unregister receive, send)
// that are scoped per-device in this design (the teacher's AGWPE server
// boundary groups per-connection operations the same way).
type Dev interface {
	// Index returns the interface index.
	Index() uint32

	// Name returns the interface name (e.g. "can0"), used for log context.
	Name() string

	// IsCAN reports whether this device is a CAN-type interface.
	IsCAN() bool

	// IsUp reports the current administrative up/down state.
	IsUp() bool

	// RegisterRX registers cb to be invoked for frames received on this
	// device matching the given filter; cookie is passed back unchanged.
	RegisterRX(filter canframe.Filter, cb ReceiveFunc, cookie any) error

	// UnregisterRX removes a previously registered callback for the given
	// filter/cookie pair.
	UnregisterRX(filter canframe.Filter, cookie any)

	// Send transmits frame on this device. echo, when true, asks the
	// delivery subsystem to make the frame observable on the sending
	// interface's own receive path (the ECHO flag pass-through).
	Send(frame canframe.Frame, echo bool) error
}

// Registry resolves interface indices to Dev handles and refcounts them,
// matching spec.md §6's dev_by_index/dev_put pair.
type Registry interface {
	// DevByIndex resolves idx to a device, acquiring one reference on
	// success. Returns (nil, false) if idx cannot be resolved.
	DevByIndex(idx uint32) (Dev, bool)

	// DevPut releases one reference previously acquired via DevByIndex.
	DevPut(d Dev)
}

// UnregisterEvent is a device-unregister notification: idx identifies the
// device that is going away.
type UnregisterEvent struct {
	Idx  uint32
	Name string
}
