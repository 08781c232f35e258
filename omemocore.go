// Package omemocore wires the OMEMO (XEP-0384) session and key-agreement
// engine behind a single entry point, Core, as described in section 5.
// Core owns no cryptography or storage logic itself -- it only
// sequences calls across the leaf packages (crypto, store, registry,
// bundle, session, trust, encrypt, decrypt, receive, observer, muc)
// behind one coarse mutex, released across every suspension point
// (pub-sub fetch, bundle fetch, stanza send) the way session.Engine and
// registry.Registry already do internally.
package omemocore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/meszmate/omemocore/bundle"
	"github.com/meszmate/omemocore/config"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/decrypt"
	"github.com/meszmate/omemocore/encrypt"
	"github.com/meszmate/omemocore/muc"
	"github.com/meszmate/omemocore/observer"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/receive"
	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/session"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport"
	"github.com/meszmate/omemocore/trust"
	"github.com/meszmate/omemocore/wire"
)

// Core is the OMEMO engine for one local device. A single Core instance
// serves one JID/device id pair; a client juggling several accounts
// constructs one Core per account.
type Core struct {
	mu sync.Mutex

	opts config.Options

	engine   omemocrypto.Engine
	keyStore store.KeyStore

	registry *registry.Registry
	bundles  *bundle.Service
	sessions *session.Engine
	trust    *trust.Gate
	enc      *encrypt.Encryptor
	dec      *decrypt.Decryptor
	pipeline *receive.Pipeline
	observer *observer.Observer
	rooms    *muc.Registry
	codec    transport.ElementCodec

	conn         transport.Connection
	nextPreKeyID atomic.Uint32
}

// New constructs a Core from already-initialized collaborators. Bootstrap
// is the usual entry point for a fresh identity; New is exposed directly
// for callers assembling a Core around a KeyStore that already holds an
// established identity (e.g. restored from disk).
func New(opts config.Options, engine omemocrypto.Engine, keyStore store.KeyStore, pubsub transport.PubSub, codec transport.ElementCodec, publish observer.PublishFunc) (*Core, error) {
	identity, err := keyStore.GetIdentityKeyPair()
	if err != nil {
		return nil, fmt.Errorf("omemocore: loading identity: %w", err)
	}

	reg := registry.New(keyStore, pubsub, codec)
	bundles := bundle.New(engine, keyStore, pubsub, codec, opts.OwnJID, opts.BundleOptions())
	sessions := session.New(engine, keyStore, bundles, identity)
	gate := trust.New(engine, keyStore)
	enc := encrypt.New(engine, reg, gate, sessions, opts.OwnJID, opts.DeviceID)
	dec := decrypt.New(engine, keyStore, sessions, opts.DeviceID)
	pipeline := receive.New(dec)
	obs := observer.New(reg, opts.OwnJID, opts.DeviceID, publish)

	core := &Core{
		opts:     opts,
		engine:   engine,
		keyStore: keyStore,
		registry: reg,
		bundles:  bundles,
		sessions: sessions,
		trust:    gate,
		enc:      enc,
		dec:      dec,
		pipeline: pipeline,
		observer: obs,
		rooms:    muc.NewRegistry(),
		codec:    codec,
	}

	ids, err := keyStore.AllPreKeyIDs()
	if err != nil {
		return nil, err
	}
	var maxID uint32
	for _, id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	core.nextPreKeyID.Store(maxID)

	return core, nil
}

// allocPreKeyID returns the next one-time pre-key id to generate,
// monotonically increasing so a replenishment round never reissues an
// id already published (and possibly already consumed) earlier.
func (c *Core) allocPreKeyID() uint32 {
	return c.nextPreKeyID.Add(1)
}

// Bootstrap generates a fresh identity, signed pre-key, and full
// one-time pre-key pool into keyStore, publishes the resulting bundle,
// then constructs a Core around it. Use this the first time a device
// comes online; afterwards reconstruct with New against the populated
// store.
func Bootstrap(ctx context.Context, opts config.Options, engine omemocrypto.Engine, keyStore store.KeyStore, pubsub transport.PubSub, codec transport.ElementCodec, publish observer.PublishFunc) (*Core, error) {
	identity, err := engine.GenerateIdentity()
	if err != nil {
		return nil, fmt.Errorf("omemocore: generating identity: %w", err)
	}
	if err := keyStore.SaveIdentityKeyPair(identity); err != nil {
		return nil, err
	}
	if err := keyStore.SaveLocalDeviceID(opts.DeviceID); err != nil {
		return nil, err
	}

	spk, err := engine.GenerateSignedPreKey(identity, 1)
	if err != nil {
		return nil, fmt.Errorf("omemocore: generating signed pre-key: %w", err)
	}
	if err := keyStore.SaveSignedPreKey(spk); err != nil {
		return nil, err
	}

	poolTarget := opts.BundleOptions().PoolTarget
	if poolTarget == 0 {
		poolTarget = bundle.DefaultPoolTarget
	}
	for id := uint32(1); id <= uint32(poolTarget); id++ {
		pk, err := engine.GeneratePreKey(id)
		if err != nil {
			return nil, fmt.Errorf("omemocore: generating pre-key %d: %w", id, err)
		}
		if err := keyStore.SavePreKey(pk); err != nil {
			return nil, err
		}
	}

	core, err := New(opts, engine, keyStore, pubsub, codec, publish)
	if err != nil {
		return nil, err
	}
	core.nextPreKeyID.Store(uint32(poolTarget))
	if err := core.bundles.PublishSelf(ctx, opts.DeviceID); err != nil {
		return nil, fmt.Errorf("omemocore: publishing initial bundle: %w", err)
	}
	return core, nil
}

// SetTrustCallback installs the application's trust decision callback.
// It must be called exactly once, before the first Send or receive-path
// call that would need to resolve an undecided device.
func (c *Core) SetTrustCallback(cb store.TrustCallback) error {
	return c.trust.SetCallback(cb)
}

// Attach wires conn's device-list notifications into the DeviceRegistry
// and self re-enrollment logic, and remembers conn as the connection
// SendMessage uses for outbound sends.
func (c *Core) Attach(conn transport.Connection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.observer.Attach(conn)
}

// SaveRoom records a MUC room's configuration and member list, consulted
// by SendToRoom to expand a room jid into its member bare jids.
func (c *Core) SaveRoom(room *muc.Room) {
	c.rooms.SaveRoom(room)
}

// connection snapshots the attached Connection under the coarse lock so
// Send does not hold it across the network round-trip that follows.
func (c *Core) connection() (transport.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, omemoerr.ErrNotConnected
	}
	return c.conn, nil
}

// Send encrypts plaintext for every trusted active device of recipients
// plus the local identity's other devices, and delivers the resulting
// element to each recipient jid over the attached Connection. The coarse
// mutex (section 5) guards only the snapshot of engine state consulted
// along the way -- EncryptForJIDs and SendMessage themselves run
// unlocked, since both cross suspension points (bundle/device-list fetch,
// stanza send).
func (c *Core) Send(ctx context.Context, recipients []string, plaintext []byte) (*encrypt.Element, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	el, err := c.enc.EncryptForJIDs(ctx, recipients, plaintext)
	if err != nil {
		return nil, err
	}

	wireEl := wire.EncodeEncrypted(el.SenderDeviceID, el.IV, el.Keys, el.Payload)
	payload, err := c.codec.Marshal(wireEl)
	if err != nil {
		return el, fmt.Errorf("omemocore: encoding element: %w", err)
	}

	// Every recipient jid gets an identical copy of the stanza (it
	// already carries a wrapped key for each of that jid's devices).
	// With no external recipient -- a self-sync send -- the stanza
	// still needs somewhere to go so a server's carbon copy reaches the
	// sender's other devices, so it addresses itself.
	targets := recipients
	if len(targets) == 0 {
		targets = []string{c.opts.OwnJID}
	}
	for _, jid := range targets {
		if err := conn.SendMessage(ctx, jid, payload); err != nil {
			return el, fmt.Errorf("omemocore: delivering to %s: %w", jid, err)
		}
	}
	return el, nil
}

// SendToRoom resolves roomJID to its member bare jids via the MUC
// registry and sends plaintext to each. Returns omemoerr.ErrNoOmemoSupport
// if the room is unknown or not both members-only and non-anonymous.
func (c *Core) SendToRoom(ctx context.Context, roomJID string, plaintext []byte) (*encrypt.Element, error) {
	members, err := c.rooms.ResolveMembers(roomJID)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, members, plaintext)
}

// Receive runs one inbound OmemoElement through the ReceivePipeline.
// ok is false for a harmless duplicate (already-seen sender-device and
// ratchet counter); callers should simply drop those rather than
// surfacing an error.
func (c *Core) Receive(ctx context.Context, senderJID string, senderDeviceID uint32, el *wire.Encrypted, source receive.Source) (*decrypt.DecryptedMessage, bool, error) {
	return c.pipeline.Handle(ctx, senderJID, senderDeviceID, el, source)
}

// RotateSignedPreKeyIfDue checks the current signed pre-key's age against
// the configured rotation window and, if due, generates and publishes a
// replacement, retiring the old one into its grace period.
func (c *Core) RotateSignedPreKeyIfDue(ctx context.Context) error {
	due, err := c.bundles.NeedsRotation()
	if err != nil || !due {
		return err
	}
	return c.bundles.RotateSignedPreKey(ctx, c.opts.DeviceID)
}

// ReplenishPreKeys tops the one-time pre-key pool back up to its target
// size if it has fallen below the configured low-water mark, then
// republishes the bundle.
func (c *Core) ReplenishPreKeys(ctx context.Context) error {
	return c.bundles.ReplenishIfLow(ctx, c.opts.DeviceID, c.allocPreKeyID)
}

// Fingerprint returns device's identity fingerprint for display in a
// trust-verification UI.
func (c *Core) Fingerprint(device store.Device) (string, error) {
	return c.trust.Fingerprint(device)
}
