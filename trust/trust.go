// Package trust implements TrustGate, section 4.H: resolving a
// candidate device's fingerprint and gating it against the installed
// TrustCallback before any ciphertext is produced for it.
package trust

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/store"
)

// Gate resolves and caches trust decisions. It holds no lock of its own
// over the store; callers (the Core) serialize access per section 5's
// single coarse mutex.
type Gate struct {
	engine   omemocrypto.Engine
	keyStore store.KeyStore

	mu       sync.Mutex
	callback store.TrustCallback
}

func New(engine omemocrypto.Engine, keyStore store.KeyStore) *Gate {
	return &Gate{engine: engine, keyStore: keyStore}
}

// SetCallback installs the TrustCallback. It may be called at most once
// per Gate; a second call returns ErrTrustCallbackSet.
func (g *Gate) SetCallback(cb store.TrustCallback) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.callback != nil {
		return omemoerr.ErrTrustCallbackSet
	}
	g.callback = cb
	return nil
}

func (g *Gate) callbackOrErr() (store.TrustCallback, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.callback == nil {
		return nil, omemoerr.ErrNoTrustCallback
	}
	return g.callback, nil
}

// Fingerprint returns the lowercase 64-hex fingerprint of a device's
// identity public key, as known to the store (it must already have been
// learned, e.g. from a published bundle or a received session).
func (g *Gate) Fingerprint(device store.Device) (string, error) {
	pub, ok, err := g.keyStore.GetRemoteIdentity(device)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("trust: %w: %s", omemoerr.ErrMissingFingerprint, device)
	}
	return g.engine.Fingerprint(pub), nil
}

// Resolve returns the cached trust state for device, querying and
// caching the callback's decision on first sight of a fingerprint. A
// fingerprint change (identity key rotation or an impersonation
// attempt) resets the cached decision back to Undecided for re-query.
func (g *Gate) Resolve(device store.Device) (store.TrustState, error) {
	fp, err := g.Fingerprint(device)
	if err != nil {
		return store.Undecided, err
	}

	state, err := g.keyStore.GetTrust(device, fp)
	if err != nil {
		return store.Undecided, err
	}
	if state != store.Undecided {
		return state, nil
	}

	cb, err := g.callbackOrErr()
	if err != nil {
		return store.Undecided, err
	}
	decided := cb(device, fp)
	if decided != store.Undecided {
		if err := g.keyStore.SetTrust(device, fp, decided); err != nil {
			return store.Undecided, err
		}
	}
	return decided, nil
}

// Gate filters candidates down to the trusted subset, per 4.H's policy:
// trusted devices are kept, untrusted are silently dropped, and any
// undecided device aborts the whole call with UndecidedDevices naming
// every undecided candidate (not just the first).
func (g *Gate) Filter(candidates []store.Device) ([]store.Device, error) {
	var trusted, undecided []store.Device
	for _, d := range candidates {
		state, err := g.Resolve(d)
		if err != nil {
			return nil, err
		}
		switch state {
		case store.Trusted:
			trusted = append(trusted, d)
		case store.Untrusted:
			// excluded silently
		default:
			undecided = append(undecided, d)
		}
	}
	if len(undecided) > 0 {
		return nil, omemoerr.NewUndecidedDevices(undecided)
	}
	return trusted, nil
}

// IdentityChanged reports whether pub no longer matches the identity
// key the store has on file for device -- used by the receive path to
// detect a rotated or spoofed identity before trusting new ciphertext.
func (g *Gate) IdentityChanged(device store.Device, pub ed25519.PublicKey) (bool, error) {
	known, ok, err := g.keyStore.GetRemoteIdentity(device)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return !ed25519.PublicKey(known).Equal(pub), nil
}
