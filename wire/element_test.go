package wire

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/meszmate/omemocore/store"
)

func TestEncodeDecodeEncryptedRoundtrip(t *testing.T) {
	keys := []KeyEntry{
		{RecipientDeviceID: 2001, IsPreKey: true, Wrapped: []byte("wrapped-for-2001")},
		{RecipientDeviceID: 2002, IsPreKey: true, Wrapped: []byte("wrapped-for-2002")},
	}
	iv := []byte("123456789012")
	payload := []byte("ciphertext-body")

	el := EncodeEncrypted(1001, iv, keys, payload)

	data, err := xml.Marshal(el)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Encrypted
	if err := xml.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Header.SID != 1001 {
		t.Errorf("SID = %d, want 1001", decoded.Header.SID)
	}
	if len(decoded.Header.Keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(decoded.Header.Keys))
	}

	gotIV, err := decoded.Header.DecodeIV()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotIV, iv) {
		t.Errorf("iv = %q, want %q", gotIV, iv)
	}

	key, ok := decoded.Header.KeyFor(2002)
	if !ok {
		t.Fatal("expected key entry for rid 2002")
	}
	val, err := key.DecodeValue()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(val, []byte("wrapped-for-2002")) {
		t.Errorf("decoded key = %q", val)
	}
	if !key.Prekey {
		t.Error("expected prekey flag set")
	}

	gotPayload, err := decoded.Payload.DecodePayload()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %q, want %q", gotPayload, payload)
	}
}

func TestEncodeEncryptedKeyTransportHasNoPayload(t *testing.T) {
	el := EncodeEncrypted(1001, []byte("123456789012"), nil, nil)
	if el.Payload != nil {
		t.Error("expected nil payload for key-transport element")
	}
}

func TestDeviceListRoundtrip(t *testing.T) {
	ids := []uint32{1001, 1002}
	list := EncodeDeviceList(ids)

	data, err := xml.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	var decoded DeviceList
	if err := xml.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	got := decoded.IDs()
	if len(got) != 2 || got[0] != 1001 || got[1] != 1002 {
		t.Errorf("IDs = %v, want %v", got, ids)
	}
}

func TestBundleEncodeDecodeRoundtrip(t *testing.T) {
	spk := &store.SignedPreKeyRecord{ID: 1, PublicKey: []byte("spk-pub-bytes-32"), Signature: []byte("signature-bytes")}
	preKeys := []*store.PreKeyRecord{
		{ID: 7, PublicKey: []byte("opk-7-pub")},
		{ID: 8, PublicKey: []byte("opk-8-pub")},
	}
	identity := []byte("identity-public-key-bytes")

	b := EncodeBundle(identity, spk, preKeys)

	data, err := xml.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var decodedXML Bundle
	if err := xml.Unmarshal(data, &decodedXML); err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeBundle(&decodedXML)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded.IdentityKey, identity) {
		t.Errorf("identity key = %q, want %q", decoded.IdentityKey, identity)
	}
	if decoded.SignedPreKeyID != 1 || !bytes.Equal(decoded.SignedPreKey, spk.PublicKey) {
		t.Errorf("signed pre-key mismatch: id=%d key=%q", decoded.SignedPreKeyID, decoded.SignedPreKey)
	}
	if len(decoded.PreKeys) != 2 || !bytes.Equal(decoded.PreKeys[7], []byte("opk-7-pub")) {
		t.Errorf("prekeys mismatch: %v", decoded.PreKeys)
	}
}
