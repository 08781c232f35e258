// Package decrypt implements Decryptor, section 4.G: locating the
// recipient entry addressed to our own device, unwrapping the payload
// key through SessionEngine, and recovering plaintext or delivering a
// key-transport message.
package decrypt

import (
	"context"
	"fmt"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/omemoerr"
	"github.com/meszmate/omemocore/ratchet"
	"github.com/meszmate/omemocore/session"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/wire"
)

// DecryptedMessage is what the ReceivePipeline hands up to the
// application once an OmemoElement has been processed.
type DecryptedMessage struct {
	SenderDevice   store.Device
	Plaintext      []byte // nil for a key-transport message
	IsKeyTransport bool
	Info           MessageInfo
}

// MessageInfo carries metadata that does not belong in the plaintext
// itself but that callers need for UI or audit purposes.
type MessageInfo struct {
	IdentityFingerprint string
	WasCarbon           bool
	WasArchive          bool
}

// Decryptor implements decrypt_key's consumer contract: per-element
// own-device lookup, unwrap, and AEAD recovery.
type Decryptor struct {
	engine    omemocrypto.Engine
	keyStore  store.KeyStore
	sessions  *session.Engine
	ownDevice uint32
}

func New(engine omemocrypto.Engine, keyStore store.KeyStore, sessions *session.Engine, ownDevice uint32) *Decryptor {
	return &Decryptor{engine: engine, keyStore: keyStore, sessions: sessions, ownDevice: ownDevice}
}

// OwnDeviceID returns the local device id this Decryptor filters
// incoming key entries against.
func (d *Decryptor) OwnDeviceID() uint32 { return d.ownDevice }

// Options describes which inbound source an element arrived from, per
// section 4.I; the Decryptor itself is source-agnostic and just records
// these flags into MessageInfo.
type Options struct {
	WasCarbon  bool
	WasArchive bool
}

// Decrypt processes one OmemoElement from senderJID/senderDeviceID.
// ErrNotForUs is returned (not wrapped further) when no key entry
// addresses our own device, matching the "silently skipped" contract.
func (d *Decryptor) Decrypt(ctx context.Context, senderJID string, senderDeviceID uint32, el *wire.Encrypted, opts Options) (*DecryptedMessage, error) {
	key, ok := el.Header.KeyFor(d.ownDevice)
	if !ok {
		return nil, omemoerr.ErrNotForUs
	}

	blob, err := key.DecodeValue()
	if err != nil {
		return nil, fmt.Errorf("decrypt: decoding key value: %w", err)
	}
	headerBytes, wrapped, preludeBytes, err := wire.DecodeKeyBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("decrypt: decoding key blob: %w", err)
	}

	var header ratchet.Header
	if err := header.UnmarshalBinary(headerBytes); err != nil {
		return nil, fmt.Errorf("decrypt: decoding ratchet header: %w", err)
	}

	var prelude *session.X3DHPrelude
	if key.Prekey {
		if len(preludeBytes) == 0 {
			return nil, fmt.Errorf("%w: pre-key message missing X3DH prelude", omemoerr.ErrCorrupted)
		}
		prelude, err = session.UnmarshalX3DHPrelude(preludeBytes)
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
	}

	sender := store.Device{OwnerJID: senderJID, DeviceID: senderDeviceID}
	keyMaterial, err := d.sessions.DecryptKey(ctx, sender, &header, wrapped, prelude)
	if err != nil {
		return nil, err
	}

	fp, _, _ := d.fingerprint(sender)
	info := MessageInfo{IdentityFingerprint: fp, WasCarbon: opts.WasCarbon, WasArchive: opts.WasArchive}

	if el.Payload == nil {
		return &DecryptedMessage{SenderDevice: sender, IsKeyTransport: true, Info: info}, nil
	}

	tagSize := d.engine.TagSize()
	if len(keyMaterial) != payloadKeySize+tagSize {
		return nil, fmt.Errorf("%w: unexpected unwrapped key length %d", omemoerr.ErrCorrupted, len(keyMaterial))
	}
	payloadKey := keyMaterial[:payloadKeySize]
	authTag := keyMaterial[payloadKeySize:]

	iv, err := el.Header.DecodeIV()
	if err != nil {
		return nil, fmt.Errorf("decrypt: decoding iv: %w", err)
	}
	ciphertext, err := el.Payload.DecodePayload()
	if err != nil {
		return nil, fmt.Errorf("decrypt: decoding payload: %w", err)
	}

	plaintext, err := d.engine.AEADDecrypt(payloadKey, iv, nil, append(ciphertext, authTag...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omemoerr.ErrAuthFailure, err)
	}

	return &DecryptedMessage{SenderDevice: sender, Plaintext: plaintext, Info: info}, nil
}

func (d *Decryptor) fingerprint(device store.Device) (string, bool, error) {
	pub, ok, err := d.keyStore.GetRemoteIdentity(device)
	if err != nil || !ok {
		return "", ok, err
	}
	return d.engine.Fingerprint(pub), true, nil
}

const payloadKeySize = 16
