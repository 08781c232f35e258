package crypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"math/big"
)

// generateIdentityKeyPair generates a new Ed25519 identity key pair.
func generateIdentityKeyPair() (*IdentityKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &IdentityKeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// generateX25519KeyPair generates a new X25519 key pair.
func generateX25519KeyPair() (*ecdh.PrivateKey, error) {
	return ecdh.X25519().GenerateKey(rand.Reader)
}

// p is the field prime 2^255 - 19.
var p = func() *big.Int {
	p := new(big.Int).SetBit(new(big.Int), 255, 1)
	p.Sub(p, big.NewInt(19))
	return p
}()

// ed25519PrivateKeyToX25519 converts an Ed25519 private key to an X25519
// private key: it hashes the 32-byte seed with SHA-512, clamps the first
// 32 bytes, and uses the result as the X25519 scalar.
func ed25519PrivateKeyToX25519(edPriv ed25519.PrivateKey) (*ecdh.PrivateKey, error) {
	seed := edPriv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return ecdh.X25519().NewPrivateKey(h[:32])
}

// ed25519PublicKeyToX25519 converts an Ed25519 public key to an X25519
// public key using the birational map u = (1+y)/(1-y) mod p.
func ed25519PublicKeyToX25519(edPub ed25519.PublicKey) ([]byte, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, ErrInvalidKeyLength
	}

	yBytes := make([]byte, 32)
	copy(yBytes, edPub)
	yBytes[31] &= 0x7F

	reversed := make([]byte, 32)
	for i := 0; i < 32; i++ {
		reversed[i] = yBytes[31-i]
	}
	y := new(big.Int).SetBytes(reversed)

	one := big.NewInt(1)
	numerator := new(big.Int).Add(one, y)
	numerator.Mod(numerator, p)

	denominator := new(big.Int).Sub(new(big.Int).Set(one), y)
	denominator.Mod(denominator, p)

	denomInv := new(big.Int).ModInverse(denominator, p)
	if denomInv == nil {
		return nil, ErrInvalidKeyLength
	}

	u := new(big.Int).Mul(numerator, denomInv)
	u.Mod(u, p)

	uBytes := make([]byte, 32)
	uBig := u.Bytes()
	for i, b := range uBig {
		uBytes[len(uBig)-1-i] = b
	}

	return uBytes, nil
}

// X25519DH performs an X25519 Diffie-Hellman exchange. Exported so the
// ratchet package (which owns the Double Ratchet DH steps) can reuse it
// without duplicating the ecdh plumbing.
func X25519DH(privateKey *ecdh.PrivateKey, publicKeyBytes []byte) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(publicKeyBytes)
	if err != nil {
		return nil, err
	}
	return privateKey.ECDH(pub)
}

// X25519PrivateKeyFromBytes parses a raw 32-byte X25519 private scalar.
func X25519PrivateKeyFromBytes(b []byte) (*ecdh.PrivateKey, error) {
	return ecdh.X25519().NewPrivateKey(b)
}

// Ed25519PrivateKeyToX25519 exposes the conversion for callers (e.g. the
// session package) that need the identity key in X25519 form for X3DH.
func Ed25519PrivateKeyToX25519(edPriv ed25519.PrivateKey) (*ecdh.PrivateKey, error) {
	return ed25519PrivateKeyToX25519(edPriv)
}

// Ed25519PublicKeyToX25519 exposes the conversion for callers that need a
// remote identity's X25519 public key for X3DH.
func Ed25519PublicKeyToX25519(edPub ed25519.PublicKey) ([]byte, error) {
	return ed25519PublicKeyToX25519(edPub)
}
