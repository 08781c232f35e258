package store

import (
	"crypto/ed25519"
	"time"

	"github.com/meszmate/omemocore/crypto"
)

// KeyStore persists everything section 4.B requires: local device ids per
// identity, the identity key pair, the current and previous signed
// pre-key, the one-time pre-key pool, sessions keyed by Device, cached
// device lists keyed by owner, trust decisions, and the last signed
// pre-key rotation timestamp. All operations are synchronous from the
// caller's perspective and must be durable on return.
//
// Implementations report a missing record or an unprovisioned store with
// errors satisfying errors.Is against this package's ErrNotFound and
// ErrNotInitialized; callers never probe the concrete type.
type KeyStore interface {
	// GetIdentityKeyPair returns the local identity key pair, or
	// ErrNotInitialized if none has been provisioned yet.
	GetIdentityKeyPair() (*crypto.IdentityKeyPair, error)

	// SaveIdentityKeyPair persists the local identity key pair.
	SaveIdentityKeyPair(ikp *crypto.IdentityKeyPair) error

	// GetLocalDeviceID returns the local device id.
	GetLocalDeviceID() (uint32, error)

	// SaveLocalDeviceID persists the local device id.
	SaveLocalDeviceID(id uint32) error

	// GetRemoteIdentity returns the stored identity public key for a device.
	GetRemoteIdentity(d Device) (ed25519.PublicKey, bool, error)

	// SaveRemoteIdentity stores a remote device's identity public key.
	SaveRemoteIdentity(d Device, key ed25519.PublicKey) error

	// GetTrust returns the trust decision for a device's fingerprint. A
	// fingerprint not seen before returns Undecided, the default state of
	// every (device, fingerprint) tuple; a query records nothing, and only
	// SetTrust stores a decision.
	GetTrust(d Device, fingerprint string) (TrustState, error)

	// SetTrust records a trust decision for a device's fingerprint.
	SetTrust(d Device, fingerprint string, state TrustState) error

	// GetPreKey returns a one-time pre-key by id.
	GetPreKey(id uint32) (*PreKeyRecord, error)

	// SavePreKey stores a one-time pre-key.
	SavePreKey(record *PreKeyRecord) error

	// RemovePreKey removes a one-time pre-key by id. Used to commit
	// consumption atomically with session creation.
	RemovePreKey(id uint32) error

	// PreKeyCount reports the size of the remaining one-time pre-key
	// pool, so BundleService can decide to replenish.
	PreKeyCount() (int, error)

	// AllPreKeyIDs returns every retained one-time pre-key id, for bundle
	// publication snapshots.
	AllPreKeyIDs() ([]uint32, error)

	// GetSignedPreKey returns a signed pre-key by id (current or, within
	// the grace window, previous).
	GetSignedPreKey(id uint32) (*SignedPreKeyRecord, error)

	// SaveSignedPreKey stores a signed pre-key as the current one.
	SaveSignedPreKey(record *SignedPreKeyRecord) error

	// CurrentSignedPreKeyID returns the id of the signed pre-key
	// currently advertised in published bundles.
	CurrentSignedPreKeyID() (uint32, bool, error)

	// RetireSignedPreKey moves the signed pre-key of the given id out of
	// the "current" slot, keeping it retrievable for the grace window.
	RetireSignedPreKey(id uint32) error

	// PruneSignedPreKeys deletes retired signed pre-keys older than
	// olderThan, enforcing the two-generation limit.
	PruneSignedPreKeys(olderThan time.Time) error

	// GetLastRotation returns when the signed pre-key was last rotated.
	GetLastRotation() (time.Time, bool, error)

	// SaveLastRotation records the signed pre-key rotation time.
	SaveLastRotation(t time.Time) error

	// GetSession returns the serialized ratchet state for a device.
	GetSession(d Device) ([]byte, bool, error)

	// SaveSession stores the serialized ratchet state for a device. A
	// partially initialized session must never be passed here; callers
	// save a session once its X3DH agreement has completed, which for an
	// initiator is while the session is still PendingX3DH.
	SaveSession(d Device, data []byte) error

	// DeleteSession removes a session, used by SessionEngine.reset and by
	// the three-strike Corrupted policy.
	DeleteSession(d Device) error

	// GetDeviceList returns the cached device-list state for an owner
	// identity, and its last-refresh time.
	GetDeviceList(owner string) (*DeviceListState, time.Time, bool, error)

	// SaveDeviceList persists the cached device-list state and refresh
	// timestamp for an owner identity.
	SaveDeviceList(owner string, state *DeviceListState, refreshedAt time.Time) error

	// CorruptionStrikes returns the number of consecutive Corrupted
	// decrypts recorded for a device since the last successful decrypt
	// or reset.
	CorruptionStrikes(d Device) (int, error)

	// RecordCorruption increments the strike counter and returns the new
	// total.
	RecordCorruption(d Device) (int, error)

	// ClearCorruption resets the strike counter, called after a
	// successful decrypt or an explicit reset.
	ClearCorruption(d Device) error
}
