package decrypt

import (
	"context"
	"testing"

	"github.com/meszmate/omemocore/bundle"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/encrypt"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/session"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport/memorynet"
	"github.com/meszmate/omemocore/trust"
	"github.com/meszmate/omemocore/wire"
)

type peer struct {
	jid      string
	deviceID uint32
	engine   omemocrypto.Engine
	keyStore *store.MemoryStore
	registry *registry.Registry
	trust    *trust.Gate
	sessions *session.Engine
	encrypt  *encrypt.Encryptor
	decrypt  *Decryptor
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
	enc := encrypt.New(engine, reg, gate, sessions, jid, deviceID)
	dec := New(engine, keyStore, sessions, deviceID)

	return &peer{
		jid: jid, deviceID: deviceID, engine: engine, keyStore: keyStore,
		registry: reg, trust: gate, sessions: sessions, encrypt: enc, decrypt: dec,
		identity: identity,
	}
}

func (p *peer) device() store.Device {
	return store.Device{OwnerJID: p.jid, DeviceID: p.deviceID}
}

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

func TestDecryptRoundtripSingleDevice(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob := setupPeer(t, net, "bob@example.com", 2001)

	alice.seedActiveDevices(t, "bob@example.com", 2001)
	alice.seedActiveDevices(t, "alice@example.com", 1001)
	alice.learnIdentity(t, bob)
	alice.trustAll(t)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}

	wireEl := wire.EncodeEncrypted(el.SenderDeviceID, el.IV, el.Keys, el.Payload)

	bob.learnIdentity(t, alice)
	msg, err := bob.decrypt.Decrypt(context.Background(), alice.jid, el.SenderDeviceID, wireEl, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if msg.IsKeyTransport {
		t.Fatal("expected a plaintext message, not key-transport")
	}
	if string(msg.Plaintext) != "hello" {
		t.Errorf("plaintext = %q", msg.Plaintext)
	}
	if msg.Info.IdentityFingerprint == "" {
		t.Error("expected a non-empty identity fingerprint")
	}
}

func TestDecryptNotForUsSkippedSilently(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob := setupPeer(t, net, "bob@example.com", 2001)
	eve := setupPeer(t, net, "eve@example.com", 5001)

	alice.seedActiveDevices(t, "bob@example.com", 2001)
	alice.seedActiveDevices(t, "alice@example.com", 1001)
	alice.learnIdentity(t, bob)
	alice.trustAll(t)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	wireEl := wire.EncodeEncrypted(el.SenderDeviceID, el.IV, el.Keys, el.Payload)

	if _, err := eve.decrypt.Decrypt(context.Background(), alice.jid, el.SenderDeviceID, wireEl, Options{}); err != omemoerr.ErrNotForUs {
		t.Errorf("expected ErrNotForUs, got %v", err)
	}
}

func TestDecryptKeyTransportHasNilPlaintext(t *testing.T) {
	net := memorynet.New()
	alice := setupPeer(t, net, "alice@example.com", 1001)
	bob := setupPeer(t, net, "bob@example.com", 2001)

	alice.seedActiveDevices(t, "bob@example.com", 2001)
	alice.seedActiveDevices(t, "alice@example.com", 1001)
	alice.learnIdentity(t, bob)
	alice.trustAll(t)
	bob.learnIdentity(t, alice)

	el, err := alice.encrypt.EncryptForJIDs(context.Background(), []string{"bob@example.com"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	wireEl := wire.EncodeEncrypted(el.SenderDeviceID, el.IV, el.Keys, el.Payload)

	msg, err := bob.decrypt.Decrypt(context.Background(), alice.jid, el.SenderDeviceID, wireEl, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsKeyTransport || msg.Plaintext != nil {
		t.Error("expected a key-transport message with nil plaintext")
	}
}
