package observer

import (
	"context"
	"testing"
	"time"

	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport/memorynet"
)

func TestObserverMergesRemoteDeviceList(t *testing.T) {
	net := memorynet.New()
	keyStore := store.NewMemoryStore()
	reg := registry.New(keyStore, net.PubSub(), memorynet.Codec{})

	obs := New(reg, "alice@example.com", 1001, func(context.Context, []uint32) error { return nil })
	conn := net.Connection("alice@example.com")
	obs.Attach(conn)

	net.NotifyDeviceList("bob@example.com", []uint32{2001, 2002})

	devices, err := reg.ActiveDevices("bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
}

func TestObserverReEnrollsOwnMissingDevice(t *testing.T) {
	net := memorynet.New()
	keyStore := store.NewMemoryStore()
	reg := registry.New(keyStore, net.PubSub(), memorynet.Codec{})

	published := make(chan []uint32, 1)
	obs := New(reg, "alice@example.com", 1001, func(_ context.Context, ids []uint32) error {
		published <- ids
		return nil
	})
	conn := net.Connection("alice@example.com")
	obs.Attach(conn)

	// A published list for alice's own jid that omits her device 1001.
	net.NotifyDeviceList("alice@example.com", []uint32{9999})

	select {
	case ids := <-published:
		found := false
		for _, id := range ids {
			if id == 1001 {
				found = true
			}
		}
		if !found {
			t.Errorf("republished ids = %v, want to include 1001", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for re-enrollment republish")
	}
}

func TestObserverNoOpWhenOwnDevicePresent(t *testing.T) {
	net := memorynet.New()
	keyStore := store.NewMemoryStore()
	reg := registry.New(keyStore, net.PubSub(), memorynet.Codec{})

	published := make(chan []uint32, 1)
	obs := New(reg, "alice@example.com", 1001, func(_ context.Context, ids []uint32) error {
		published <- ids
		return nil
	})
	conn := net.Connection("alice@example.com")
	obs.Attach(conn)

	net.NotifyDeviceList("alice@example.com", []uint32{1001, 1002})

	select {
	case ids := <-published:
		t.Errorf("did not expect a republish, got %v", ids)
	case <-time.After(200 * time.Millisecond):
	}
}
