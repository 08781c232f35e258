package encrypt

import (
	"context"
	"testing"

	"github.com/meszmate/omemocore/bundle"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/session"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport/memorynet"
	"github.com/meszmate/omemocore/trust"
)

type peer struct {
	jid      string
	deviceID uint32
	engine   omemocrypto.Engine
	keyStore *store.MemoryStore
	bundles  *bundle.Service
	registry *registry.Registry
	trust    *trust.Gate
	sessions *session.Engine
	encrypt  *Encryptor
	identity *omemocrypto.IdentityKeyPair
}

func setupPeer(t *testing.T, net *memorynet.Network, jid string, deviceID uint32) *peer {
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

	bundles := bundle.New(engine, keyStore, net.PubSub(), memorynet.Codec{}, jid, bundle.Options{})
	if err := bundles.PublishSelf(context.Background(), deviceID); err != nil {
		t.Fatal(err)
	}

	reg := registry.New(keyStore, net.PubSub(), memorynet.Codec{})
	gate := trust.New(engine, keyStore)
	sessions := session.New(engine, keyStore, bundles, identity)
	enc := New(engine, reg, gate, sessions, jid, deviceID)

	return &peer{
		jid: jid, deviceID: deviceID, engine: engine, keyStore: keyStore,
		bundles: bundles, registry: reg, trust: gate, sessions: sessions,
		encrypt: enc, identity: identity,
	}
}

func (p *peer) device() store.Device {
	return store.Device{OwnerJID: p.jid, DeviceID: p.deviceID}
}

// seedActiveDevices pre-populates the local registry cache for owner, as
// if a prior refresh had already observed these devices -- the device
// list wire format and pub-sub plumbing are exercised by the root
// package's scenario tests instead.
func (p *peer) seedActiveDevices(t *testing.T, owner string, ids ...uint32) {
	t.Helper()
	if err := p.registry.Merge(owner, ids); err != nil {
		t.Fatal(err)
	}
}

func (p *peer) learnIdentity(t *testing.T, other *peer) {
	t.Helper()
	if err := p.keyStore.SaveRemoteIdentity(other.device(), other.identity.PublicKey); err != nil {
		t.Fatal(err)
	}
}

func (p *peer) trustAll(t *testing.T) {
	t.Helper()
	if err := p.trust.SetCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		t.Fatal(err)
	}
}

func TestEncryptorSingleRecipientHappyPath(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob1 := setupPeer(t, net, "bob@example.com", 2001)
	bob2 := setupPeer(t, net, "bob@example.com", 2002)

	alice.seedActiveDevices(t, "bob@example.com", 2001, 2002)
	alice.seedActiveDevices(t, "alice@example.com", 1001)

	alice.learnIdentity(t, bob1)
	alice.learnIdentity(t, bob2)
	alice.trustAll(t)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if len(el.Keys) != 2 {
		t.Fatalf("len(Keys) = %d, want 2", len(el.Keys))
	}
	if len(el.IV) != ivSize {
		t.Errorf("len(IV) = %d, want %d", len(el.IV), ivSize)
	}
	for _, k := range el.Keys {
		if !k.IsPreKey {
			t.Errorf("key for device %d: expected IsPreKey on first send", k.RecipientDeviceID)
		}
	}
}

func TestEncryptorExcludesOwnDevice(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	alice2 := setupPeer(t, net, "alice@example.com", 1002)
	alice.seedActiveDevices(t, "alice@example.com", 1001, 1002)
	alice.learnIdentity(t, alice2)
	alice.trustAll(t)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), nil, []byte("note to self"))
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range el.Keys {
		if k.RecipientDeviceID == 1001 {
			t.Error("sender's own device must not appear among recipient keys")
		}
	}
}

func TestEncryptorUndecidedDeviceAbortsSend(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob1 := setupPeer(t, net, "bob@example.com", 2001)

	alice.seedActiveDevices(t, "bob@example.com", 2001)
	alice.seedActiveDevices(t, "alice@example.com", 1001)
	alice.learnIdentity(t, bob1)
	if err := alice.trust.SetCallback(func(store.Device, string) store.TrustState { return store.Undecided }); err != nil {
		t.Fatal(err)
	}

	if _, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, []byte("hi")); err == nil {
		t.Error("expected undecided device to abort the send")
	}
}

func TestEncryptorKeyTransportHasNoPayload(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob1 := setupPeer(t, net, "bob@example.com", 2001)

	alice.seedActiveDevices(t, "bob@example.com", 2001)
	alice.seedActiveDevices(t, "alice@example.com", 1001)
	alice.learnIdentity(t, bob1)
	alice.trustAll(t)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if el.Payload != nil {
		t.Error("expected no payload for a key-transport send")
	}
	if len(el.Keys) != 1 {
		t.Fatalf("len(Keys) = %d, want 1", len(el.Keys))
	}
}
