package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

const (
	nonceSize = 12 // GCM standard nonce
	tagSize   = 16 // GCM auth tag
)

// aeadEncrypt encrypts plaintext with AES-GCM under key (16 or 32 bytes)
// and the given nonce and additional authenticated data. The returned
// slice is ciphertext with the tag appended.
func aeadEncrypt(key, nonce, aad, plaintext []byte) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidMessage
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// aeadDecrypt decrypts ciphertextAndTag (ciphertext with the tag appended).
func aeadDecrypt(key, nonce, aad, ciphertextAndTag []byte) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidMessage
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertextAndTag, aad)
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return plaintext, nil
}
