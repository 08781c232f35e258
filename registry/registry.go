// Package registry implements DeviceRegistry, section 4.C: the per-owner
// active/inactive device set, refreshed from pub-sub and merged against
// remote announcements.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meszmate/omemocore/internal/ns"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport"
	"github.com/meszmate/omemocore/wire"
)

// StaleThreshold is the default age after which active_devices triggers
// a background refresh instead of trusting the cached list.
const StaleThreshold = 15 * time.Minute

// Registry maintains a mapping owner -> CachedDeviceList, coalescing
// concurrent refreshes of the same owner so every caller observes the
// same result.
type Registry struct {
	keyStore store.KeyStore
	pubsub   transport.PubSub
	codec    transport.ElementCodec

	mu                 sync.Mutex
	inflight           map[string]*refreshCall
	selfEnrollInflight map[string]*refreshCall
}

type refreshCall struct {
	done chan struct{}
	err  error
}

func New(keyStore store.KeyStore, pubsub transport.PubSub, codec transport.ElementCodec) *Registry {
	return &Registry{
		keyStore:           keyStore,
		pubsub:             pubsub,
		codec:              codec,
		inflight:           make(map[string]*refreshCall),
		selfEnrollInflight: make(map[string]*refreshCall),
	}
}

// ActiveDevices returns the last-known active set for owner, triggering
// a background refresh if the cached entry is missing or older than
// StaleThreshold. It never blocks the caller on network I/O.
func (r *Registry) ActiveDevices(owner string) ([]store.Device, error) {
	state, refreshedAt, ok, err := r.keyStore.GetDeviceList(owner)
	if err != nil {
		return nil, err
	}
	if !ok || time.Since(refreshedAt) > StaleThreshold {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = r.Refresh(ctx, owner)
		}()
	}
	if !ok {
		return nil, nil
	}
	return state.Devices(owner), nil
}

// Refresh synchronously fetches the published device list for owner and
// merges it. Concurrent callers for the same owner coalesce onto a
// single in-flight fetch and observe the same result.
func (r *Registry) Refresh(ctx context.Context, owner string) error {
	r.mu.Lock()
	if call, ok := r.inflight[owner]; ok {
		r.mu.Unlock()
		<-call.done
		return call.err
	}
	call := &refreshCall{done: make(chan struct{})}
	r.inflight[owner] = call
	r.mu.Unlock()

	err := r.doRefresh(ctx, owner)

	r.mu.Lock()
	delete(r.inflight, owner)
	r.mu.Unlock()

	call.err = err
	close(call.done)
	return err
}

func (r *Registry) doRefresh(ctx context.Context, owner string) error {
	items, err := r.pubsub.Fetch(ctx, owner, ns.OMEMOv0DeviceList)
	if err != nil {
		return fmt.Errorf("registry: fetching device list for %s: %w", owner, err)
	}
	if len(items) == 0 {
		return nil
	}

	var list wire.DeviceList
	if err := r.codec.Unmarshal(items[len(items)-1].Payload, &list); err != nil {
		return fmt.Errorf("registry: decoding device list for %s: %w", owner, err)
	}

	return r.Merge(owner, list.IDs())
}

// Merge replaces the active set with remoteIDs; ids previously active
// but now absent become inactive, retained for fingerprint history.
func (r *Registry) Merge(owner string, remoteIDs []uint32) error {
	state, _, ok, err := r.keyStore.GetDeviceList(owner)
	if err != nil {
		return err
	}
	if !ok {
		state = store.NewDeviceListState()
	}

	newActive := make(map[uint32]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		newActive[id] = true
	}
	for id := range state.Active {
		if !newActive[id] {
			state.Inactive[id] = true
		}
	}
	state.Active = newActive

	return r.keyStore.SaveDeviceList(owner, state, time.Now())
}

// EnsureSelfEnrolled checks whether the last fetched list for own's own
// jid contains own's own device id; if not, it merges and republishes
// the union. Invoked by the DeviceListObserver on events naming own
// jid. Concurrent callers for the same ownJID coalesce onto a single
// in-flight republish, the same inflight-map pattern Refresh uses for
// concurrent fetches of the same owner -- without it, two device-list
// events arriving close together could each observe the device missing
// and both republish.
func (r *Registry) EnsureSelfEnrolled(ctx context.Context, ownJID string, ownDeviceID uint32, publish func(ctx context.Context, ids []uint32) error) error {
	r.mu.Lock()
	if call, ok := r.selfEnrollInflight[ownJID]; ok {
		r.mu.Unlock()
		<-call.done
		return call.err
	}
	call := &refreshCall{done: make(chan struct{})}
	r.selfEnrollInflight[ownJID] = call
	r.mu.Unlock()

	err := r.doEnsureSelfEnrolled(ctx, ownJID, ownDeviceID, publish)

	r.mu.Lock()
	delete(r.selfEnrollInflight, ownJID)
	r.mu.Unlock()

	call.err = err
	close(call.done)
	return err
}

func (r *Registry) doEnsureSelfEnrolled(ctx context.Context, ownJID string, ownDeviceID uint32, publish func(ctx context.Context, ids []uint32) error) error {
	state, _, ok, err := r.keyStore.GetDeviceList(ownJID)
	if err != nil {
		return err
	}
	if ok && state.Active[ownDeviceID] {
		return nil
	}

	ids := []uint32{ownDeviceID}
	if ok {
		for id := range state.Active {
			if id != ownDeviceID {
				ids = append(ids, id)
			}
		}
	}

	if err := r.Merge(ownJID, ids); err != nil {
		return err
	}
	return publish(ctx, ids)
}
