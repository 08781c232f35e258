// Package observer implements DeviceListObserver, section 4.J: reacting
// to pub-sub device-list notifications, merging remote updates into the
// DeviceRegistry, and re-enrolling the local device when a published
// list for our own jid omits it.
package observer

import (
	"context"
	"log"
	"time"

	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/transport"
)

const defaultReEnrollTimeout = 30 * time.Second

// PublishFunc republishes the union of ids to the owning jid's
// device-list node. Supplied by the caller (the Core), since only it
// knows how to reach the local BundleService/pub-sub connection.
type PublishFunc func(ctx context.Context, ids []uint32) error

// Observer wires one Connection's device-list notifications to a
// Registry merge and, for the local jid, a re-enrollment republish.
type Observer struct {
	registry  *registry.Registry
	ownJID    string
	ownDevice uint32
	publish   PublishFunc
}

func New(reg *registry.Registry, ownJID string, ownDevice uint32, publish PublishFunc) *Observer {
	return &Observer{registry: reg, ownJID: ownJID, ownDevice: ownDevice, publish: publish}
}

// Attach registers the Observer's handler on conn. The handler must not
// block the transport's notification goroutine (section 9): merging is
// synchronous in-memory map work, but a self re-enrollment republish is
// dispatched onto its own goroutine since it is a suspension point
// (section 5) that would otherwise deadlock a Connection that delivers
// notifications and accepts sends on the same loop.
func (o *Observer) Attach(conn transport.Connection) {
	conn.Subscribe(o.handle)
}

func (o *Observer) handle(event transport.DeviceListEvent) {
	if event.Owner == "" {
		return
	}

	if err := o.registry.Merge(event.Owner, event.DeviceIDs); err != nil {
		log.Printf("observer: merging device list for %s: %v", event.Owner, err)
		return
	}

	if event.Owner != o.ownJID {
		return
	}
	if contains(event.DeviceIDs, o.ownDevice) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultReEnrollTimeout)
		defer cancel()
		if err := o.registry.EnsureSelfEnrolled(ctx, o.ownJID, o.ownDevice, o.publish); err != nil {
			log.Printf("observer: re-enrolling own device %d: %v", o.ownDevice, err)
		}
	}()
}

func contains(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
