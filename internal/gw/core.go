// Package gw implements the gateway core: the per-frame hot path (§4.4),
// the control-plane request handlers (§4.5), and the error kinds they
// surface (§7).
package gw

import (
	"io"
	"unsafe"

	"github.com/charmbracelet/log"

	"github.com/canfleet/cangw/internal/device"
	"github.com/canfleet/cangw/internal/jobtable"
)

// gatewayOwnerSentinel's address is the process-unique loop-avoidance
// marker spec.md §4.4/§6 calls for: a sentinel owner handle written into a
// forwarded frame, distinguishable from any real socket owner (which would
// be some other, unrelated, non-zero value) and from "no owner" (zero).
var gatewayOwnerSentinel byte

// gatewayOwner is the marker value; computed once, used by both the
// dispatch entry check and the mark step.
var gatewayOwner = uintptr(unsafe.Pointer(&gatewayOwnerSentinel))

// Core owns the job table and the device registry, and implements both the
// hot path and the control plane over them.
type Core struct {
	Table    jobtable.Table
	Registry device.Registry
	Log      *log.Logger
}

// NewCore builds a Core over the given device registry. log may be nil, in
// which case a discarding logger is used.
func NewCore(reg device.Registry, logger *log.Logger) *Core {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Core{Registry: reg, Log: logger}
}
