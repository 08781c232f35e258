package wire

import (
	"encoding/base64"

	"github.com/meszmate/omemocore/store"
)

// EncodeBundle builds the published Bundle element from local key
// material: an identity public key, the current signed pre-key, and a
// snapshot of the one-time pre-key pool (section 4.D's publish_self).
func EncodeBundle(identityKey []byte, spk *store.SignedPreKeyRecord, prekeys []*store.PreKeyRecord) *Bundle {
	items := make([]BundlePreKey, len(prekeys))
	for i, pk := range prekeys {
		items[i] = BundlePreKey{ID: pk.ID, Value: base64.StdEncoding.EncodeToString(pk.PublicKey)}
	}
	return &Bundle{
		SignedPreKeyPublic:    SignedPreKey{ID: spk.ID, Value: base64.StdEncoding.EncodeToString(spk.PublicKey)},
		SignedPreKeySignature: base64.StdEncoding.EncodeToString(spk.Signature),
		IdentityKey:           base64.StdEncoding.EncodeToString(identityKey),
		Prekeys:               BundlePreKeys{Items: items},
	}
}

// DecodedBundle is a fetched peer bundle with its binary fields decoded,
// before BundleService picks one one-time pre-key uniformly at random.
type DecodedBundle struct {
	IdentityKey           []byte
	SignedPreKeyID        uint32
	SignedPreKey          []byte
	SignedPreKeySignature []byte
	PreKeys               map[uint32][]byte
}

// DecodeBundle reverses EncodeBundle, base64-decoding every field.
func DecodeBundle(b *Bundle) (*DecodedBundle, error) {
	identityKey, err := base64.StdEncoding.DecodeString(b.IdentityKey)
	if err != nil {
		return nil, err
	}
	spkPub, err := base64.StdEncoding.DecodeString(b.SignedPreKeyPublic.Value)
	if err != nil {
		return nil, err
	}
	sig, err := base64.StdEncoding.DecodeString(b.SignedPreKeySignature)
	if err != nil {
		return nil, err
	}

	preKeys := make(map[uint32][]byte, len(b.Prekeys.Items))
	for _, pk := range b.Prekeys.Items {
		raw, err := base64.StdEncoding.DecodeString(pk.Value)
		if err != nil {
			return nil, err
		}
		preKeys[pk.ID] = raw
	}

	return &DecodedBundle{
		IdentityKey:           identityKey,
		SignedPreKeyID:        b.SignedPreKeyPublic.ID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		PreKeys:               preKeys,
	}, nil
}
