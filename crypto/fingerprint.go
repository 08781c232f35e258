package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
)

// fingerprint returns the lowercase 64-hex SHA-256 digest of an identity
// public key, per spec section 3 ("fingerprint = lowercase hex of 64-char
// digest of the public identity key").
func fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}
