package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/meszmate/omemocore/crypto"
)

// chainKDF derives a message key and the next chain key from a chain key,
// per the teacher's crypto/omemo/kdf.go: messageKey = HMAC-SHA256(CK, 0x01),
// nextChainKey = HMAC-SHA256(CK, 0x02). The message key is always 32 bytes;
// callers take the leading engine.KeySize() bytes as the AEAD key.
func chainKDF(chainKey []byte) (messageKey, nextChainKey []byte) {
	mk := hmac.New(sha256.New, chainKey)
	mk.Write([]byte{0x01})
	messageKey = mk.Sum(nil)

	ck := hmac.New(sha256.New, chainKey)
	ck.Write([]byte{0x02})
	nextChainKey = ck.Sum(nil)

	return messageKey, nextChainKey
}

// rootKDF derives a new root key and chain key from the current root key
// and a DH output, per the teacher's rootKDF: HKDF with salt=RK,
// ikm=DHOutput, info="OMEMO Root Chain", producing 64 bytes split into new
// RK (first 32) and new CK (last 32).
func rootKDF(rootKey, dhOutput []byte) (newRootKey, newChainKey []byte, err error) {
	out, err := crypto.HKDFSHA256(rootKey, dhOutput, []byte("OMEMO Root Chain"), 64)
	if err != nil {
		return nil, nil, err
	}
	return out[:32], out[32:], nil
}
