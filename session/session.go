// Package session implements SessionEngine, section 4.E: Double-Ratchet
// session creation and advancement over X3DH, key-transport wrapping,
// and session teardown.
package session

import (
	"context"
	"crypto/ecdh"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/meszmate/omemocore/bundle"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/ratchet"
	"github.com/meszmate/omemocore/store"
)

// Phase is the per-session state machine of section 4.E: a freshly
// created Engine has no entry for a device (None); encrypt_key moves it
// to PendingX3DH once a bundle has been fetched; decrypt_key's first
// successful read from the peer moves it to Established; reset, or a
// third consecutive failed decrypt from the peer, moves it to Terminated,
// at which point the entry is deleted and the next operation starts over
// from None.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePendingX3DH
	PhaseEstablished
	PhaseTerminated
)

// Engine implements get_or_create_session, encrypt_key, decrypt_key,
// send_ratchet_update, and reset. It holds no lock of its own: callers
// (the Core) serialize access per section 5's single coarse mutex.
type Engine struct {
	engine   omemocrypto.Engine
	keyStore store.KeyStore
	bundles  *bundle.Service
	identity *omemocrypto.IdentityKeyPair

	mu     sync.Mutex
	phases map[store.Device]Phase
}

func New(engine omemocrypto.Engine, keyStore store.KeyStore, bundles *bundle.Service, identity *omemocrypto.IdentityKeyPair) *Engine {
	return &Engine{
		engine:   engine,
		keyStore: keyStore,
		bundles:  bundles,
		identity: identity,
		phases:   make(map[store.Device]Phase),
	}
}

func (e *Engine) phaseOf(d store.Device) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phases[d]
}

func (e *Engine) setPhase(d store.Device, p Phase) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phases[d] = p
}

// GetOrCreateSession returns the stored ratchet state for peer, or
// establishes one via X3DH against a freshly fetched bundle. The bundle
// fetch is a suspension point (section 5): it runs without holding any
// session-specific lock beyond the phase map bookkeeping above.
func (e *Engine) GetOrCreateSession(ctx context.Context, peer store.Device) (*ratchet.State, error) {
	data, ok, err := e.keyStore.GetSession(peer)
	if err != nil {
		return nil, err
	}
	if ok {
		var st ratchet.State
		if err := st.UnmarshalBinary(e.engine, data); err != nil {
			return nil, fmt.Errorf("session: decoding stored session for %s: %w", peer, err)
		}
		return &st, nil
	}

	e.setPhase(peer, PhasePendingX3DH)

	fetched, err := e.bundles.Fetch(ctx, peer.OwnerJID, peer.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omemoerr.ErrNoBundle, err)
	}

	result, err := ratchet.X3DHInitiate(e.identity, fetched.Remote)
	if err != nil {
		return nil, err
	}

	st, err := ratchet.InitAsAlice(e.engine, result.SharedSecret, fetched.Remote.SignedPreKey, result.EphemeralPubKey, result.UsedPreKeyID, result.SignedPreKeyID)
	if err != nil {
		return nil, err
	}

	// Consumption of the one-time pre-key commits before the session is
	// offered for use, so it is never double-consumed (section 5).
	if fetched.UsedPreKeyID != nil {
		if err := e.keyStore.RemovePreKey(*fetched.UsedPreKeyID); err != nil {
			return nil, err
		}
	}

	if err := e.saveSession(peer, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) saveSession(peer store.Device, st *ratchet.State) error {
	data, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return e.keyStore.SaveSession(peer, data)
}

// X3DHPrelude carries the initiator's ephemeral key, the id of the
// remote signed pre-key the agreement was run against, and, if one was
// consumed, the one-time pre-key id -- repeated on every message until
// the responder's first successful decrypt moves the session to
// Established (section 4.E). SignedPreKeyID lets establishResponder
// fetch the exact signed pre-key generation the initiator targeted,
// even if a rotation has since moved it out of the "current" slot and
// into its grace-window retention (section 4.D).
type X3DHPrelude struct {
	EphemeralPubKey []byte
	PreKeyID        *uint32
	SignedPreKeyID  uint32
}

// MarshalBinary serializes the prelude for the Decryptor's key-blob
// framing: a 32-byte ephemeral key, a flag byte and optional big-endian
// pre-key id, then a big-endian signed-pre-key id.
func (p *X3DHPrelude) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 32+9)
	buf = append(buf, p.EphemeralPubKey...)
	if p.PreKeyID != nil {
		buf = append(buf, 1)
		id := make([]byte, 4)
		binary.BigEndian.PutUint32(id, *p.PreKeyID)
		buf = append(buf, id...)
	} else {
		buf = append(buf, 0)
	}
	spkID := make([]byte, 4)
	binary.BigEndian.PutUint32(spkID, p.SignedPreKeyID)
	buf = append(buf, spkID...)
	return buf, nil
}

// UnmarshalX3DHPrelude parses the encoding produced by MarshalBinary.
func UnmarshalX3DHPrelude(data []byte) (*X3DHPrelude, error) {
	if len(data) < 33 {
		return nil, fmt.Errorf("session: truncated X3DH prelude (%d bytes)", len(data))
	}
	p := &X3DHPrelude{EphemeralPubKey: append([]byte(nil), data[:32]...)}
	rest := data[33:]
	switch data[32] {
	case 0:
	case 1:
		if len(rest) < 4 {
			return nil, fmt.Errorf("session: truncated X3DH prelude pre-key id")
		}
		id := binary.BigEndian.Uint32(rest[:4])
		p.PreKeyID = &id
		rest = rest[4:]
	default:
		return nil, fmt.Errorf("session: invalid X3DH prelude flag %d", data[32])
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("session: truncated X3DH prelude signed-pre-key id")
	}
	p.SignedPreKeyID = binary.BigEndian.Uint32(rest[:4])
	return p, nil
}

// WrappedKey is the result of encrypt_key: the ratchet-wrapped material
// and whether this message must carry the X3DH pre-key prelude.
type WrappedKey struct {
	Header   *ratchet.Header
	Wrapped  []byte
	IsPreKey bool
	Prelude  *X3DHPrelude
}

// EncryptKey advances the sending chain one step and wraps keyMaterial
// (payload_key ‖ auth_tag in the Encryptor's usage) for peer.
func (e *Engine) EncryptKey(ctx context.Context, peer store.Device, keyMaterial []byte) (*WrappedKey, error) {
	st, err := e.GetOrCreateSession(ctx, peer)
	if err != nil {
		return nil, err
	}

	header, wrapped, err := st.Encrypt(keyMaterial)
	if err != nil {
		return nil, err
	}
	if err := e.saveSession(peer, st); err != nil {
		return nil, err
	}

	result := &WrappedKey{Header: header, Wrapped: wrapped}
	if ephemeral, preKeyID, signedPreKeyID, isInitiator := st.PreKeyPrelude(); isInitiator && e.phaseOf(peer) != PhaseEstablished {
		result.IsPreKey = true
		result.Prelude = &X3DHPrelude{EphemeralPubKey: ephemeral, PreKeyID: preKeyID, SignedPreKeyID: signedPreKeyID}
	}

	return result, nil
}

// DecryptKey unwraps wrapped from peer. If prelude is non-nil, the
// responder-side X3DH is run first (consuming the indicated one-time
// pre-key, if any), then the result is processed as an ordinary ratchet
// message. The Decryptor passes whatever prelude the message carries;
// it is nil once the sender, having itself decrypted a message from this
// device, stops attaching one.
func (e *Engine) DecryptKey(ctx context.Context, peer store.Device, header *ratchet.Header, wrapped []byte, prelude *X3DHPrelude) ([]byte, error) {
	data, ok, err := e.keyStore.GetSession(peer)
	if err != nil {
		return nil, err
	}

	var st *ratchet.State
	if ok {
		st = &ratchet.State{}
		if err := st.UnmarshalBinary(e.engine, data); err != nil {
			return nil, fmt.Errorf("session: decoding stored session for %s: %w", peer, err)
		}
	} else {
		if prelude == nil {
			return nil, omemoerr.ErrNoBundle
		}
		st, err = e.establishResponder(peer, prelude)
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := st.Decrypt(header, wrapped)
	if err != nil {
		strikes, serr := e.keyStore.RecordCorruption(peer)
		if serr != nil {
			return nil, serr
		}
		// Three consecutive corrupted messages from the same peer device
		// force a reset (section 4.G); a transient glitch below that
		// threshold leaves the session intact.
		if strikes >= 3 {
			if rerr := e.Reset(peer); rerr != nil {
				return nil, rerr
			}
		}
		return nil, fmt.Errorf("%w: %v", omemoerr.ErrCorrupted, err)
	}

	if err := e.keyStore.ClearCorruption(peer); err != nil {
		return nil, err
	}
	if err := e.saveSession(peer, st); err != nil {
		return nil, err
	}
	e.setPhase(peer, PhaseEstablished)

	return plaintext, nil
}

// establishResponder runs X3DH as the responder against the signed
// pre-key the initiator actually targeted (prelude.SignedPreKeyID) and,
// if prelude names one, a one-time pre-key -- consuming that pre-key
// from the store so no later message can replay it. Fetching by id
// rather than assuming the current one keeps a message encrypted just
// before a rotation decryptable throughout the rotation's grace window
// (section 4.D), since GetSignedPreKey serves both the current and the
// retained previous generation.
func (e *Engine) establishResponder(peer store.Device, prelude *X3DHPrelude) (*ratchet.State, error) {
	spk, err := e.keyStore.GetSignedPreKey(prelude.SignedPreKeyID)
	if err != nil {
		return nil, err
	}
	spkPriv, err := omemocrypto.X25519PrivateKeyFromBytes(spk.PrivateKey)
	if err != nil {
		return nil, err
	}

	remotePub, ok, err := e.keyStore.GetRemoteIdentity(peer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, omemoerr.ErrMissingFingerprint
	}

	var opkPriv *ecdh.PrivateKey
	if prelude.PreKeyID != nil {
		opk, err := e.keyStore.GetPreKey(*prelude.PreKeyID)
		if err != nil {
			return nil, fmt.Errorf("session: one-time pre-key %d not found: %w", *prelude.PreKeyID, err)
		}
		opkPriv, err = omemocrypto.X25519PrivateKeyFromBytes(opk.PrivateKey)
		if err != nil {
			return nil, err
		}
	}

	sharedSecret, err := ratchet.X3DHRespond(e.identity, spkPriv, opkPriv, remotePub, prelude.EphemeralPubKey)
	if err != nil {
		return nil, err
	}

	// Consumption commits only after the DH math succeeds, so a bad
	// initiator message can never burn a pre-key (section 5).
	if prelude.PreKeyID != nil {
		if err := e.keyStore.RemovePreKey(*prelude.PreKeyID); err != nil {
			return nil, err
		}
	}

	return ratchet.InitAsBob(e.engine, sharedSecret, spkPriv), nil
}

// SendRatchetUpdate produces an empty key-transport wrap to advance
// forward secrecy on demand, without any application payload.
func (e *Engine) SendRatchetUpdate(ctx context.Context, peer store.Device) (*WrappedKey, error) {
	return e.EncryptKey(ctx, peer, nil)
}

// Reset deletes a session; the next send or receive rebuilds it from
// scratch via get_or_create_session / establishResponder.
func (e *Engine) Reset(peer store.Device) error {
	e.setPhase(peer, PhaseTerminated)
	if err := e.keyStore.DeleteSession(peer); err != nil {
		return err
	}
	if err := e.keyStore.ClearCorruption(peer); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.phases, peer)
	e.mu.Unlock()
	return nil
}
