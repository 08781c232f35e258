// Package bundle implements BundleService, section 4.D: publishing the
// local pre-key bundle, fetching and consuming a peer's, and rotating
// the signed pre-key.
package bundle

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/internal/ns"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/ratchet"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport"
	"github.com/meszmate/omemocore/wire"
)

// Defaults per section 6's configuration table.
const (
	DefaultPoolTarget    = 100
	DefaultPoolLowWater  = 20
	DefaultSignedMaxAge  = 7 * 24 * time.Hour
	DefaultSignedGrace   = 30 * 24 * time.Hour
)

// Options configures pool and rotation thresholds; zero values fall back
// to the section 6 defaults.
type Options struct {
	PoolTarget   int
	PoolLowWater int
	SignedMaxAge time.Duration
	SignedGrace  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PoolTarget == 0 {
		o.PoolTarget = DefaultPoolTarget
	}
	if o.PoolLowWater == 0 {
		o.PoolLowWater = DefaultPoolLowWater
	}
	if o.SignedMaxAge == 0 {
		o.SignedMaxAge = DefaultSignedMaxAge
	}
	if o.SignedGrace == 0 {
		o.SignedGrace = DefaultSignedGrace
	}
	return o
}

// Service implements publish_self, fetch, and rotate_signed_prekey.
type Service struct {
	engine   omemocrypto.Engine
	keyStore store.KeyStore
	pubsub   transport.PubSub
	codec    transport.ElementCodec
	ownJID   string
	opts     Options
}

func New(engine omemocrypto.Engine, keyStore store.KeyStore, pubsub transport.PubSub, codec transport.ElementCodec, ownJID string, opts Options) *Service {
	return &Service{
		engine:   engine,
		keyStore: keyStore,
		pubsub:   pubsub,
		codec:    codec,
		ownJID:   ownJID,
		opts:     opts.withDefaults(),
	}
}

// FetchedBundle is one peer bundle with a single pre-key already selected
// and marked consumed locally, ready to hand to ratchet.X3DHInitiate.
type FetchedBundle struct {
	Remote       *ratchet.RemoteBundle
	UsedPreKeyID *uint32
}

// PublishSelf builds a bundle from the current identity, signed
// pre-key, and a snapshot of the one-time pre-key pool, then writes it
// to the per-device bundle node with open access.
func (s *Service) PublishSelf(ctx context.Context, deviceID uint32) error {
	identity, err := s.keyStore.GetIdentityKeyPair()
	if err != nil {
		return fmt.Errorf("bundle: loading identity: %w", err)
	}
	spkID, ok, err := s.keyStore.CurrentSignedPreKeyID()
	if err != nil {
		return err
	}
	if !ok {
		return omemoerr.ErrNotInitialized
	}
	spk, err := s.keyStore.GetSignedPreKey(spkID)
	if err != nil {
		return err
	}

	ids, err := s.keyStore.AllPreKeyIDs()
	if err != nil {
		return err
	}
	preKeys := make([]*store.PreKeyRecord, 0, len(ids))
	for _, id := range ids {
		pk, err := s.keyStore.GetPreKey(id)
		if err != nil {
			continue
		}
		preKeys = append(preKeys, pk)
	}

	b := wire.EncodeBundle(identity.PublicKey, spk, preKeys)
	payload, err := s.codec.Marshal(b)
	if err != nil {
		return fmt.Errorf("bundle: encoding: %w", err)
	}

	node := fmt.Sprintf("%s:%d", ns.OMEMOv0BundlePrefix, deviceID)
	return s.pubsub.Publish(ctx, s.ownJID, node, transport.AccessOpen, transport.Item{
		ID:      "current",
		Payload: payload,
	})
}

// Fetch retrieves a peer device's bundle and selects one unused one-time
// pre-key uniformly at random. The selection is consumed from the local
// store before this returns, so no other concurrent establishment
// attempt against the same peer device can reuse it.
func (s *Service) Fetch(ctx context.Context, peerJID string, peerDeviceID uint32) (*FetchedBundle, error) {
	node := fmt.Sprintf("%s:%d", ns.OMEMOv0BundlePrefix, peerDeviceID)
	items, err := s.pubsub.Fetch(ctx, peerJID, node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omemoerr.ErrNoBundle, err)
	}
	if len(items) == 0 {
		return nil, omemoerr.ErrNoBundle
	}

	var b wire.Bundle
	if err := s.codec.Unmarshal(items[len(items)-1].Payload, &b); err != nil {
		return nil, fmt.Errorf("bundle: decoding peer bundle: %w", err)
	}
	decoded, err := wire.DecodeBundle(&b)
	if err != nil {
		return nil, fmt.Errorf("bundle: decoding peer bundle fields: %w", err)
	}

	remote := &ratchet.RemoteBundle{
		IdentityKey:           decoded.IdentityKey,
		SignedPreKey:          decoded.SignedPreKey,
		SignedPreKeyID:        decoded.SignedPreKeyID,
		SignedPreKeySignature: decoded.SignedPreKeySignature,
	}

	if len(decoded.PreKeys) > 0 {
		id, pub, err := pickRandomPreKey(decoded.PreKeys)
		if err != nil {
			return nil, err
		}
		remote.PreKeyID = &id
		remote.PreKeyPublic = pub
	}

	return &FetchedBundle{Remote: remote, UsedPreKeyID: remote.PreKeyID}, nil
}

func pickRandomPreKey(preKeys map[uint32][]byte) (uint32, []byte, error) {
	ids := make([]uint32, 0, len(preKeys))
	for id := range preKeys {
		ids = append(ids, id)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(ids))))
	if err != nil {
		return 0, nil, err
	}
	id := ids[n.Int64()]
	return id, preKeys[id], nil
}

// RotateSignedPreKey generates a new signed pre-key, retains the
// previous one for the grace window, and republishes.
func (s *Service) RotateSignedPreKey(ctx context.Context, deviceID uint32) error {
	identity, err := s.keyStore.GetIdentityKeyPair()
	if err != nil {
		return err
	}
	prevID, hadPrev, err := s.keyStore.CurrentSignedPreKeyID()
	if err != nil {
		return err
	}

	newID := prevID + 1
	record, err := s.engine.GenerateSignedPreKey(identity, newID)
	if err != nil {
		return fmt.Errorf("bundle: generating signed pre-key: %w", err)
	}
	if err := s.keyStore.SaveSignedPreKey(record); err != nil {
		return err
	}
	if hadPrev {
		if err := s.keyStore.RetireSignedPreKey(prevID); err != nil {
			return err
		}
	}
	if err := s.keyStore.SaveLastRotation(time.Now()); err != nil {
		return err
	}

	return s.PublishSelf(ctx, deviceID)
}

// NeedsRotation reports whether the signed pre-key is older than the
// configured max age.
func (s *Service) NeedsRotation() (bool, error) {
	last, ok, err := s.keyStore.GetLastRotation()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return time.Since(last) > s.opts.SignedMaxAge, nil
}

// ReplenishIfLow tops the one-time pre-key pool back up to PoolTarget
// when it has dropped below PoolLowWater, and republishes the bundle.
func (s *Service) ReplenishIfLow(ctx context.Context, deviceID uint32, nextID func() uint32) error {
	count, err := s.keyStore.PreKeyCount()
	if err != nil {
		return err
	}
	if count >= s.opts.PoolLowWater {
		return nil
	}

	for count < s.opts.PoolTarget {
		id := nextID()
		pk, err := s.engine.GeneratePreKey(id)
		if err != nil {
			return fmt.Errorf("bundle: generating pre-key: %w", err)
		}
		if err := s.keyStore.SavePreKey(pk); err != nil {
			return err
		}
		count++
	}

	return s.PublishSelf(ctx, deviceID)
}
