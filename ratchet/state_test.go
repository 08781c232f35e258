package ratchet

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	omemocrypto "github.com/meszmate/omemocore/crypto"
)

func TestHeaderMarshalRoundtrip(t *testing.T) {
	pub := make([]byte, 32)
	if _, err := rand.Read(pub); err != nil {
		t.Fatal(err)
	}
	h := &Header{DHPub: pub, N: 42, PN: 10}

	data, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var h2 Header
	if err := h2.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h.DHPub, h2.DHPub) {
		t.Error("DHPub mismatch")
	}
	if h.N != h2.N || h.PN != h2.PN {
		t.Errorf("N/PN mismatch: got (%d,%d), want (%d,%d)", h2.N, h2.PN, h.N, h.PN)
	}
}

func TestHeaderInvalidSize(t *testing.T) {
	var h Header
	if err := h.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for invalid size")
	}
}

func setupAliceBob(t *testing.T) (*State, *State) {
	t.Helper()
	engine := omemocrypto.NewDefaultEngine()

	sharedSecret := make([]byte, 32)
	if _, err := rand.Read(sharedSecret); err != nil {
		t.Fatal(err)
	}

	bobSPK, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	alice, err := InitAsAlice(engine, sharedSecret, bobSPK.PublicKey().Bytes(), nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	bob := InitAsBob(engine, sharedSecret, bobSPK)

	return alice, bob
}

func TestBasicExchange(t *testing.T) {
	alice, bob := setupAliceBob(t)

	header, ct, err := alice.Encrypt([]byte("Hello Bob!"))
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := bob.Decrypt(header, ct)
	if err != nil {
		t.Fatal(err)
	}
	if string(plaintext) != "Hello Bob!" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

func TestBidirectionalExchange(t *testing.T) {
	alice, bob := setupAliceBob(t)

	header, ct, err := alice.Encrypt([]byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Decrypt(header, ct); err != nil {
		t.Fatal(err)
	}

	header, ct, err = bob.Encrypt([]byte("pong"))
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := alice.Decrypt(header, ct)
	if err != nil {
		t.Fatal(err)
	}
	if string(plaintext) != "pong" {
		t.Errorf("plaintext = %q", plaintext)
	}
}

// TestOutOfOrderDelivery matches spec section 8 scenario 6: Bob sends M1,
// M2, M3 and Alice receives them as M2, M3, M1. All three must decrypt,
// and the skipped-key map must return to 0 afterward.
func TestOutOfOrderDelivery(t *testing.T) {
	alice, bob := setupAliceBob(t)

	type msg struct {
		header *Header
		ct     []byte
		want   string
	}
	var msgs []msg
	for _, want := range []string{"M1", "M2", "M3"} {
		h, ct, err := bob.Encrypt([]byte(want))
		if err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, msg{h, ct, want})
	}

	order := []int{1, 2, 0} // M2, M3, M1
	for _, i := range order {
		pt, err := alice.Decrypt(msgs[i].header, msgs[i].ct)
		if err != nil {
			t.Fatalf("decrypting %s: %v", msgs[i].want, err)
		}
		if string(pt) != msgs[i].want {
			t.Errorf("got %q, want %q", pt, msgs[i].want)
		}
	}

	if n := alice.SkippedCount(); n != 0 {
		t.Errorf("skipped count = %d, want 0", n)
	}
}

func TestSkippedOverflow(t *testing.T) {
	alice, bob := setupAliceBob(t)

	var last msg
	for i := 0; i < MaxSkippedKeys+2; i++ {
		h, ct, err := bob.Encrypt([]byte("x"))
		if err != nil {
			t.Fatal(err)
		}
		last = msg{h, ct}
	}

	if _, err := alice.Decrypt(last.header, last.ct); err != ErrSkippedKeyLimit {
		t.Errorf("expected ErrSkippedKeyLimit, got %v", err)
	}
}

type msg struct {
	header *Header
	ct     []byte
}

func TestStateMarshalRoundtrip(t *testing.T) {
	alice, bob := setupAliceBob(t)

	header, ct, err := alice.Encrypt([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Decrypt(header, ct); err != nil {
		t.Fatal(err)
	}

	data, err := bob.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	engine := omemocrypto.NewDefaultEngine()
	var restored State
	if err := restored.UnmarshalBinary(engine, data); err != nil {
		t.Fatal(err)
	}

	header2, ct2, err := alice.Encrypt([]byte("again"))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := restored.Decrypt(header2, ct2)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "again" {
		t.Errorf("plaintext = %q", pt)
	}
}
