package ratchet

import (
	"crypto/ecdh"
	"crypto/ed25519"

	omemocrypto "github.com/meszmate/omemocore/crypto"
)

var (
	x3dhSalt = make([]byte, 32) // 32 zero bytes
	x3dhPad  = func() []byte {
		b := make([]byte, 32)
		for i := range b {
			b[i] = 0xFF
		}
		return b
	}()
)

// X3DHResult holds the result of an X3DH key agreement.
type X3DHResult struct {
	SharedSecret    []byte
	EphemeralPubKey []byte // X25519 public key used by the initiator
	UsedPreKeyID    *uint32
	SignedPreKeyID  uint32 // id of the remote signed pre-key targeted, for the responder to look up the right one across a rotation
}

// RemoteBundle is the subset of a peer's published pre-key bundle needed
// to run X3DH as the initiator.
type RemoteBundle struct {
	IdentityKey           ed25519.PublicKey
	SignedPreKey          []byte // 32 bytes, X25519 public key
	SignedPreKeyID        uint32
	SignedPreKeySignature []byte
	PreKeyID              *uint32 // id of the one-time pre-key selected by the caller, if any
	PreKeyPublic          []byte  // 32 bytes, X25519 public key, if PreKeyID != nil
}

// X3DHInitiate performs the X3DH key agreement as the initiator (Alice).
// The caller is responsible for selecting which one-time pre-key (if any)
// to consume from the bundle before calling this -- spec section 4.D
// requires that selection be made uniformly at random and committed
// before the session is offered for use.
func X3DHInitiate(localIdentity *omemocrypto.IdentityKeyPair, remoteBundle *RemoteBundle) (*X3DHResult, error) {
	if !ed25519.Verify(remoteBundle.IdentityKey, remoteBundle.SignedPreKey, remoteBundle.SignedPreKeySignature) {
		return nil, ErrInvalidSignature
	}

	ephemeralKey, err := freshX25519KeyPair()
	if err != nil {
		return nil, err
	}

	localX25519, err := omemocrypto.Ed25519PrivateKeyToX25519(localIdentity.PrivateKey)
	if err != nil {
		return nil, err
	}
	remoteX25519Pub, err := omemocrypto.Ed25519PublicKeyToX25519(remoteBundle.IdentityKey)
	if err != nil {
		return nil, err
	}

	// DH1 = DH(IK_A_x25519, SPK_B)
	dh1, err := omemocrypto.X25519DH(localX25519, remoteBundle.SignedPreKey)
	if err != nil {
		return nil, err
	}
	// DH2 = DH(EK_A, IK_B_x25519)
	dh2, err := omemocrypto.X25519DH(ephemeralKey, remoteX25519Pub)
	if err != nil {
		return nil, err
	}
	// DH3 = DH(EK_A, SPK_B)
	dh3, err := omemocrypto.X25519DH(ephemeralKey, remoteBundle.SignedPreKey)
	if err != nil {
		return nil, err
	}

	ikm := make([]byte, 0, 32+32*4)
	ikm = append(ikm, x3dhPad...)
	ikm = append(ikm, dh1...)
	ikm = append(ikm, dh2...)
	ikm = append(ikm, dh3...)

	var usedPreKeyID *uint32
	if remoteBundle.PreKeyID != nil {
		// DH4 = DH(EK_A, OPK_B)
		dh4, err := omemocrypto.X25519DH(ephemeralKey, remoteBundle.PreKeyPublic)
		if err != nil {
			return nil, err
		}
		ikm = append(ikm, dh4...)
		id := *remoteBundle.PreKeyID
		usedPreKeyID = &id
	}

	sk, err := omemocrypto.HKDFSHA256(x3dhSalt, ikm, []byte("OMEMO X3DH"), 32)
	if err != nil {
		return nil, err
	}

	return &X3DHResult{
		SharedSecret:    sk,
		EphemeralPubKey: ephemeralKey.PublicKey().Bytes(),
		UsedPreKeyID:    usedPreKeyID,
		SignedPreKeyID:  remoteBundle.SignedPreKeyID,
	}, nil
}

// X3DHRespond performs the X3DH key agreement as the responder (Bob).
// localOPK is nil if the initiator's message did not carry a one-time
// pre-key id.
func X3DHRespond(
	localIdentity *omemocrypto.IdentityKeyPair,
	localSPK *ecdh.PrivateKey,
	localOPK *ecdh.PrivateKey,
	remoteIdentityKey ed25519.PublicKey,
	ephemeralPubKey []byte,
) ([]byte, error) {
	remoteX25519Pub, err := omemocrypto.Ed25519PublicKeyToX25519(remoteIdentityKey)
	if err != nil {
		return nil, err
	}
	localX25519, err := omemocrypto.Ed25519PrivateKeyToX25519(localIdentity.PrivateKey)
	if err != nil {
		return nil, err
	}

	// DH1 = DH(SPK_B, IK_A_x25519)
	dh1, err := omemocrypto.X25519DH(localSPK, remoteX25519Pub)
	if err != nil {
		return nil, err
	}
	// DH2 = DH(IK_B_x25519, EK_A)
	dh2, err := omemocrypto.X25519DH(localX25519, ephemeralPubKey)
	if err != nil {
		return nil, err
	}
	// DH3 = DH(SPK_B, EK_A)
	dh3, err := omemocrypto.X25519DH(localSPK, ephemeralPubKey)
	if err != nil {
		return nil, err
	}

	ikm := make([]byte, 0, 32+32*4)
	ikm = append(ikm, x3dhPad...)
	ikm = append(ikm, dh1...)
	ikm = append(ikm, dh2...)
	ikm = append(ikm, dh3...)

	if localOPK != nil {
		// DH4 = DH(OPK_B, EK_A)
		dh4, err := omemocrypto.X25519DH(localOPK, ephemeralPubKey)
		if err != nil {
			return nil, err
		}
		ikm = append(ikm, dh4...)
	}

	return omemocrypto.HKDFSHA256(x3dhSalt, ikm, []byte("OMEMO X3DH"), 32)
}
