// Package encrypt implements Encryptor, section 4.F: resolving
// recipient devices, gating them through trust, and producing one
// OmemoElement per send with a payload encrypted once and a key wrapped
// once per device.
package encrypt

import (
	"context"
	"fmt"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/registry"
	"github.com/meszmate/omemocore/session"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/trust"
	"github.com/meszmate/omemocore/wire"
)

const (
	payloadKeySize = 16
	ivSize         = 12
)

// Encryptor ties DeviceRegistry, TrustGate, and SessionEngine together
// to produce a single OmemoElement for an outbound message.
type Encryptor struct {
	engine   omemocrypto.Engine
	registry *registry.Registry
	trust    *trust.Gate
	sessions *session.Engine

	ownJID     string
	ownDevice  uint32
}

func New(engine omemocrypto.Engine, reg *registry.Registry, gate *trust.Gate, sessions *session.Engine, ownJID string, ownDevice uint32) *Encryptor {
	return &Encryptor{
		engine:    engine,
		registry:  reg,
		trust:     gate,
		sessions:  sessions,
		ownJID:    ownJID,
		ownDevice: ownDevice,
	}
}

// Element is the outbound OmemoElement: a sender device id, an iv,
// ciphertext (with the auth tag split off into each wrapped key, not
// appended here -- matching OMEMO v0 framing), and one key per gated
// recipient device.
type Element struct {
	SenderDeviceID uint32
	IV             []byte
	Payload        []byte // nil for a key-transport send
	Keys           []wire.KeyEntry
}

// EncryptForJIDs resolves every trusted active device of each jid in
// recipients, plus every trusted active device of the sender's own
// identity except the sender's own device, and encrypts plaintext for
// all of them. A nil plaintext produces a key-transport element (no
// Payload, used by SendRatchetUpdate callers).
func (e *Encryptor) EncryptForJIDs(ctx context.Context, recipients []string, plaintext []byte) (*Element, error) {
	devices, err := e.resolveRecipients(ctx, recipients)
	if err != nil {
		return nil, err
	}
	gated, err := e.trust.Filter(devices)
	if err != nil {
		return nil, err
	}
	return e.encryptFor(ctx, gated, plaintext)
}

func (e *Encryptor) resolveRecipients(ctx context.Context, recipients []string) ([]store.Device, error) {
	seen := make(map[string]bool)
	jids := append([]string{}, recipients...)
	jids = append(jids, e.ownJID)

	var devices []store.Device
	for _, jid := range jids {
		if err := e.registry.Refresh(ctx, jid); err != nil {
			return nil, fmt.Errorf("encrypt: refreshing device list for %s: %w", jid, err)
		}
		active, err := e.registry.ActiveDevices(jid)
		if err != nil {
			return nil, err
		}
		for _, d := range active {
			if jid == e.ownJID && d.DeviceID == e.ownDevice {
				continue
			}
			key := d.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			devices = append(devices, d)
		}
	}
	return devices, nil
}

// encryptFor wraps keyMaterial once per device already gated by trust.
// Session establishment failures are collected rather than aborting the
// whole send: devices that already have a wrapped key are reported as
// successes in CannotEstablish so the caller can retry against them
// alone.
func (e *Encryptor) encryptFor(ctx context.Context, devices []store.Device, plaintext []byte) (*Element, error) {
	iv, err := e.engine.Random(ivSize)
	if err != nil {
		return nil, err
	}

	var keyMaterial []byte
	var payload []byte
	if plaintext != nil {
		payloadKey, err := e.engine.Random(payloadKeySize)
		if err != nil {
			return nil, err
		}
		ciphertextAndTag, err := e.engine.AEADEncrypt(payloadKey, iv, nil, plaintext)
		if err != nil {
			return nil, err
		}
		tagSize := e.engine.TagSize()
		payload = ciphertextAndTag[:len(ciphertextAndTag)-tagSize]
		authTag := ciphertextAndTag[len(ciphertextAndTag)-tagSize:]
		keyMaterial = append(append([]byte{}, payloadKey...), authTag...)
	}

	var successes []store.Device
	failures := make(map[store.Device]error)
	var keys []wire.KeyEntry

	for _, d := range devices {
		wk, err := e.sessions.EncryptKey(ctx, d, keyMaterial)
		if err != nil {
			failures[d] = err
			continue
		}
		successes = append(successes, d)

		headerBytes, err := wk.Header.MarshalBinary()
		if err != nil {
			failures[d] = err
			continue
		}

		var preludeBytes []byte
		if wk.Prelude != nil {
			preludeBytes, err = wk.Prelude.MarshalBinary()
			if err != nil {
				failures[d] = err
				continue
			}
		}

		keys = append(keys, wire.KeyEntry{
			RecipientDeviceID: d.DeviceID,
			IsPreKey:          wk.IsPreKey,
			Wrapped:           wire.EncodeKeyBlob(headerBytes, wk.Wrapped, preludeBytes),
		})
	}

	if len(failures) > 0 {
		return nil, omemoerr.NewCannotEstablish(successes, failures)
	}

	return &Element{
		SenderDeviceID: e.ownDevice,
		IV:             iv,
		Payload:        payload,
		Keys:           keys,
	}, nil
}

// EncryptForExistingSessions re-runs encryptFor against only the devices
// named, skipping recipient resolution and trust gating -- used to
// retry the subset CannotEstablish reported as Successes.
func (e *Encryptor) EncryptForExistingSessions(ctx context.Context, devices []store.Device, plaintext []byte) (*Element, error) {
	return e.encryptFor(ctx, devices, plaintext)
}
