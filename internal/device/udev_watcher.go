package device

import (
	"context"
	"strconv"

	"github.com/jochenvg/go-udev"
)

// UdevWatcher subscribes to udev "net" subsystem events and turns "remove"
// actions into UnregisterEvent values, the real-world source of spec.md
// §4.5's "DEVICE-UNREGISTER event." Unlike NetlinkRegistry (queried
// on-demand), a watcher pushes events as they happen, so a CAN interface
// pulled out (or its driver unloaded) is noticed promptly instead of only
// at the next lookup.
type UdevWatcher struct {
	events chan UnregisterEvent
}

// Watch starts watching for network-device removal and returns a watcher
// whose Events channel carries UnregisterEvent values. The channel is
// closed when ctx is cancelled. Errors
// establishing the monitor are returned immediately and no goroutine is
// started.
func Watch(ctx context.Context) (*UdevWatcher, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("net"); err != nil {
		return nil, err
	}

	devCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, err
	}

	w := &UdevWatcher{events: make(chan UnregisterEvent)}
	go w.pump(ctx, devCh, errCh)
	return w, nil
}

func (w *UdevWatcher) pump(ctx context.Context, devCh <-chan *udev.Device, errCh <-chan error) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-devCh:
			if !ok {
				return
			}
			if d.Action() != "remove" {
				continue
			}
			idx, err := strconv.ParseUint(d.PropertyValue("IFINDEX"), 10, 32)
			if err != nil {
				continue
			}
			select {
			case w.events <- UnregisterEvent{Idx: uint32(idx), Name: d.Sysname()}:
			case <-ctx.Done():
				return
			}
		case <-errCh:
			// The underlying netlink socket reported an error. The error is
			// dropped, not passed to the caller; we keep pumping rather than
			// tearing down the watcher on a transient read error.
			continue
		}
	}
}

// Events returns the channel of device-removal notifications.
func (w *UdevWatcher) Events() <-chan UnregisterEvent {
	return w.events
}
