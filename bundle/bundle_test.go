package bundle

import (
	"context"
	"testing"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport/memorynet"
)

func setupService(t *testing.T, jid string, deviceID uint32) (*Service, *store.MemoryStore, *memorynet.Network) {
	t.Helper()
	engine := omemocrypto.NewDefaultEngine()
	keyStore := store.NewMemoryStore()

	identity, err := engine.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	if err := keyStore.SaveIdentityKeyPair(identity); err != nil {
		t.Fatal(err)
	}
	spk, err := engine.GenerateSignedPreKey(identity, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := keyStore.SaveSignedPreKey(spk); err != nil {
		t.Fatal(err)
	}
	for id := uint32(1); id <= 5; id++ {
		pk, err := engine.GeneratePreKey(id)
		if err != nil {
			t.Fatal(err)
		}
		if err := keyStore.SavePreKey(pk); err != nil {
			t.Fatal(err)
		}
	}

	net := memorynet.New()
	svc := New(engine, keyStore, net.PubSub(), memorynet.Codec{}, jid, Options{})
	return svc, keyStore, net
}

func TestPublishAndFetchBundle(t *testing.T) {
	bobSvc, _, net := setupService(t, "bob@example.com", 2001)
	ctx := context.Background()

	if err := bobSvc.PublishSelf(ctx, 2001); err != nil {
		t.Fatal(err)
	}

	aliceSvc, _, _ := setupService(t, "alice@example.com", 1001)
	aliceSvc.pubsub = net.PubSub()

	fetched, err := aliceSvc.Fetch(ctx, "bob@example.com", 2001)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Remote.SignedPreKeyID != 1 {
		t.Errorf("SignedPreKeyID = %d, want 1", fetched.Remote.SignedPreKeyID)
	}
	if fetched.UsedPreKeyID == nil {
		t.Fatal("expected a pre-key to be selected")
	}
}

func TestFetchNoBundlePublished(t *testing.T) {
	aliceSvc, _, _ := setupService(t, "alice@example.com", 1001)
	if _, err := aliceSvc.Fetch(context.Background(), "nobody@example.com", 9999); err == nil {
		t.Error("expected an error fetching a bundle that was never published")
	}
}

func TestRotateSignedPreKeyKeepsPreviousRetrievable(t *testing.T) {
	svc, keyStore, _ := setupService(t, "alice@example.com", 1001)
	ctx := context.Background()

	if err := svc.RotateSignedPreKey(ctx, 1001); err != nil {
		t.Fatal(err)
	}

	// The original signed pre-key (id 1) must still be fetchable within
	// the grace window.
	if _, err := keyStore.GetSignedPreKey(1); err != nil {
		t.Errorf("expected retired signed pre-key 1 still retrievable: %v", err)
	}

	id, ok, err := keyStore.CurrentSignedPreKeyID()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 2 {
		t.Errorf("CurrentSignedPreKeyID = (%d, %v), want (2, true)", id, ok)
	}
}

func TestReplenishIfLowToppsUpPool(t *testing.T) {
	svc, keyStore, _ := setupService(t, "alice@example.com", 1001)
	ctx := context.Background()

	// Drain down to below the low-water mark.
	for id := uint32(1); id <= 5; id++ {
		if err := keyStore.RemovePreKey(id); err != nil {
			t.Fatal(err)
		}
	}
	svc.opts.PoolLowWater = 2
	svc.opts.PoolTarget = 10

	next := uint32(100)
	err := svc.ReplenishIfLow(ctx, 1001, func() uint32 {
		next++
		return next
	})
	if err != nil {
		t.Fatal(err)
	}

	count, err := keyStore.PreKeyCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Errorf("PreKeyCount after replenish = %d, want 10", count)
	}
}
