// Package crypto defines the CryptoEngine capability the OMEMO engine
// consumes for AEAD transforms, key generation and fingerprinting, plus a
// default implementation grounded on the teacher's crypto/omemo package
// (aes_gcm.go, keys.go, kdf.go): crypto/aes+crypto/cipher for AES-GCM,
// crypto/ecdh (X25519) and crypto/ed25519 for asymmetric keys, and
// golang.org/x/crypto/hkdf for HKDF-SHA-256.
package crypto

import "crypto/ed25519"

// IdentityKeyPair is a long-term Ed25519 identity key pair. The same key
// pair is used to sign the signed-pre-key and, after a birational
// Curve25519 conversion, as an input to X3DH's Diffie-Hellman exchanges.
type IdentityKeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// PreKeyRecord is a one-time pre-key pair, consumed on first session
// establishment with a peer.
type PreKeyRecord struct {
	ID         uint32
	PrivateKey []byte // 32 bytes, X25519
	PublicKey  []byte // 32 bytes, X25519
}

// SignedPreKeyRecord is a medium-term pre-key pair signed by the identity key.
type SignedPreKeyRecord struct {
	ID         uint32
	PrivateKey []byte // 32 bytes, X25519
	PublicKey  []byte // 32 bytes, X25519
	Signature  []byte // Ed25519 signature over PublicKey
}

// Engine is the CryptoEngine capability of spec section 4.A. Every
// operation is expected to be side-effect free aside from consuming
// entropy; persistence of the keys it generates is the caller's job.
type Engine interface {
	// GenerateIdentity creates a new long-term identity key pair.
	GenerateIdentity() (*IdentityKeyPair, error)

	// GeneratePreKey creates a new one-time pre-key pair with the given id.
	GeneratePreKey(id uint32) (*PreKeyRecord, error)

	// GenerateSignedPreKey creates a new signed pre-key pair, signed by identity.
	GenerateSignedPreKey(identity *IdentityKeyPair, id uint32) (*SignedPreKeyRecord, error)

	// VerifySignedPreKey verifies a signed pre-key's signature against an identity key.
	VerifySignedPreKey(identityPub ed25519.PublicKey, spkPublic, signature []byte) bool

	// Random returns n cryptographically random bytes.
	Random(n int) ([]byte, error)

	// AEADEncrypt encrypts plaintext under (key, iv, aad). The returned
	// slice is ciphertext with the authentication tag appended.
	AEADEncrypt(key, iv, aad, plaintext []byte) ([]byte, error)

	// AEADDecrypt decrypts ciphertextAndTag (ciphertext with the
	// authentication tag appended) under (key, iv, aad).
	AEADDecrypt(key, iv, aad, ciphertextAndTag []byte) ([]byte, error)

	// Fingerprint returns the lowercase 64-hex fingerprint of an identity public key.
	Fingerprint(pub ed25519.PublicKey) string

	// KeySize returns the AES key size in bytes this engine's AEAD uses (16 or 32).
	KeySize() int

	// NonceSize returns the AEAD nonce size in bytes (12 for GCM).
	NonceSize() int

	// TagSize returns the AEAD authentication tag size in bytes (16 for GCM).
	TagSize() int
}
