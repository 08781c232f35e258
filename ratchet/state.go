package ratchet

import (
	"bytes"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/meszmate/omemocore/crypto"
)

// skippedKey identifies a skipped message key by ratchet public key and message number.
type skippedKey struct {
	dhPub [32]byte
	n     uint32
}

// State holds the state of a Double Ratchet session between one local and
// one remote device, per spec section 3's Session data model. It is the
// ratchet half of that model; session.Engine (package session) adds the
// X3DH bootstrap and pre-key bookkeeping around it.
type State struct {
	engine crypto.Engine

	DHs *ecdh.PrivateKey // our current ratchet key pair
	DHr []byte           // their current ratchet public key (32 bytes)

	RK  []byte // root key (32 bytes)
	CKs []byte // sending chain key (32 bytes)
	CKr []byte // receiving chain key (32 bytes)

	Ns uint32 // sending message number
	Nr uint32 // receiving message number
	PN uint32 // previous sending chain length

	MKSkipped map[skippedKey][]byte // skipped message keys, bounded to MaxSkippedKeys

	// X3DHEphemeral, X3DHPreKeyID and X3DHSignedPreKeyID are the
	// initiator's X3DH prelude: the ephemeral public key used in the
	// initial key agreement, the one-time pre-key id consumed (if any),
	// and the id of the remote signed pre-key the agreement was run
	// against. The initiator resends all three with every message until
	// the session reaches Established (section 4.E), since the
	// responder needs them to derive the same root key on its first
	// successful decrypt -- X3DHSignedPreKeyID in particular lets it
	// find the right signed pre-key generation even if it has since
	// rotated past the one the initiator targeted.
	X3DHEphemeral      []byte
	X3DHPreKeyID       *uint32
	X3DHSignedPreKeyID uint32
}

// InitAsAlice initializes a Double Ratchet as the session initiator.
// Alice generates a new DH pair and derives the first sending chain from
// DH with the remote's signed pre-key.
func InitAsAlice(engine crypto.Engine, sharedSecret, remoteSPK []byte, x3dhEphemeral []byte, x3dhPreKeyID *uint32, x3dhSignedPreKeyID uint32) (*State, error) {
	dhsKey, err := freshX25519KeyPair()
	if err != nil {
		return nil, err
	}

	dhOut, err := crypto.X25519DH(dhsKey, remoteSPK)
	if err != nil {
		return nil, err
	}

	rk, cks, err := rootKDF(sharedSecret, dhOut)
	if err != nil {
		return nil, err
	}

	return &State{
		engine:             engine,
		DHs:                dhsKey,
		DHr:                remoteSPK,
		RK:                 rk,
		CKs:                cks,
		Ns:                 0,
		Nr:                 0,
		PN:                 0,
		MKSkipped:          make(map[skippedKey][]byte),
		X3DHEphemeral:      x3dhEphemeral,
		X3DHPreKeyID:       x3dhPreKeyID,
		X3DHSignedPreKeyID: x3dhSignedPreKeyID,
	}, nil
}

// PreKeyPrelude reports the X3DH material the initiator must keep
// resending until the peer acknowledges the session, and whether this
// state is an initiator's at all (a responder-constructed State never
// carries one).
func (s *State) PreKeyPrelude() ([]byte, *uint32, uint32, bool) {
	if s.X3DHEphemeral == nil {
		return nil, nil, 0, false
	}
	return s.X3DHEphemeral, s.X3DHPreKeyID, s.X3DHSignedPreKeyID, true
}

// InitAsBob initializes a Double Ratchet as the session responder. Bob
// uses his signed pre-key as the initial ratchet key and waits for the
// initiator's first message to complete the DH ratchet.
func InitAsBob(engine crypto.Engine, sharedSecret []byte, localSPK *ecdh.PrivateKey) *State {
	return &State{
		engine:    engine,
		DHs:       localSPK,
		RK:        sharedSecret,
		MKSkipped: make(map[skippedKey][]byte),
	}
}

// Encrypt advances the sending chain one step and AEAD-encrypts plaintext.
func (s *State) Encrypt(plaintext []byte) (*Header, []byte, error) {
	mk, nextCK := chainKDF(s.CKs)
	s.CKs = nextCK

	header := &Header{
		DHPub: s.DHs.PublicKey().Bytes(),
		N:     s.Ns,
		PN:    s.PN,
	}
	s.Ns++

	iv, err := s.engine.Random(s.engine.NonceSize())
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err := s.engine.AEADEncrypt(mk[:s.engine.KeySize()], iv, nil, plaintext)
	if err != nil {
		return nil, nil, err
	}

	out := make([]byte, len(iv)+len(ciphertext))
	copy(out, iv)
	copy(out[len(iv):], ciphertext)

	return header, out, nil
}

// Decrypt processes an inbound ratchet message: it tries skipped keys
// first, performs a DH ratchet step if the header carries a new remote
// key, skips any intervening messages in the current chain, then derives
// the message key and decrypts.
func (s *State) Decrypt(header *Header, ciphertext []byte) ([]byte, error) {
	if plaintext, err := s.trySkippedKeys(header, ciphertext); err == nil {
		return plaintext, nil
	}

	if s.DHr == nil || !bytes.Equal(header.DHPub, s.DHr) {
		if err := s.skipMessageKeys(header.PN); err != nil {
			return nil, err
		}
		if err := s.dhRatchetStep(header.DHPub); err != nil {
			return nil, err
		}
	}

	if err := s.skipMessageKeys(header.N); err != nil {
		return nil, err
	}

	mk, nextCK := chainKDF(s.CKr)
	s.CKr = nextCK
	s.Nr++

	return s.decryptWithIV(mk, ciphertext)
}

func (s *State) trySkippedKeys(header *Header, ciphertext []byte) ([]byte, error) {
	var k skippedKey
	copy(k.dhPub[:], header.DHPub)
	k.n = header.N

	mk, ok := s.MKSkipped[k]
	if !ok {
		return nil, ErrInvalidMessage
	}

	delete(s.MKSkipped, k)
	return s.decryptWithIV(mk, ciphertext)
}

func (s *State) skipMessageKeys(until uint32) error {
	if until > s.Nr+uint32(MaxSkippedKeys) {
		return ErrSkippedKeyLimit
	}
	for s.Nr < until {
		mk, nextCK := chainKDF(s.CKr)
		s.CKr = nextCK

		var k skippedKey
		copy(k.dhPub[:], s.DHr)
		k.n = s.Nr
		s.MKSkipped[k] = mk
		s.Nr++

		if len(s.MKSkipped) > MaxSkippedKeys {
			return ErrSkippedKeyLimit
		}
	}
	return nil
}

func (s *State) dhRatchetStep(newDHr []byte) error {
	s.PN = s.Ns
	s.Ns = 0
	s.Nr = 0
	s.DHr = make([]byte, 32)
	copy(s.DHr, newDHr)

	dhOut, err := crypto.X25519DH(s.DHs, s.DHr)
	if err != nil {
		return err
	}
	rk, ckr, err := rootKDF(s.RK, dhOut)
	if err != nil {
		return err
	}
	s.RK = rk
	s.CKr = ckr

	s.DHs, err = freshX25519KeyPair()
	if err != nil {
		return err
	}

	dhOut, err = crypto.X25519DH(s.DHs, s.DHr)
	if err != nil {
		return err
	}
	rk, cks, err := rootKDF(s.RK, dhOut)
	if err != nil {
		return err
	}
	s.RK = rk
	s.CKs = cks

	return nil
}

func (s *State) decryptWithIV(mk, data []byte) ([]byte, error) {
	n := s.engine.NonceSize()
	if len(data) < n {
		return nil, ErrInvalidMessage
	}
	plaintext, err := s.engine.AEADDecrypt(mk[:s.engine.KeySize()], data[:n], nil, data[n:])
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return plaintext, nil
}

// SkippedCount reports the number of retained skipped-message keys, for
// tests asserting the skipped-key map returns to 0 after reordering
// resolves (spec section 8, scenario 6).
func (s *State) SkippedCount() int { return len(s.MKSkipped) }

// MarshalBinary serializes the ratchet state to bytes for persistence via
// the KeyStore. Format mirrors the teacher's crypto/omemo/ratchet.go.
func (s *State) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(s.DHs.Bytes())

	if s.DHr != nil {
		buf.WriteByte(1)
		buf.Write(s.DHr)
	} else {
		buf.WriteByte(0)
	}

	buf.Write(s.RK)

	writeOptionalKey(&buf, s.CKs)
	writeOptionalKey(&buf, s.CKr)

	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, s.Ns)
	buf.Write(b)
	binary.BigEndian.PutUint32(b, s.Nr)
	buf.Write(b)
	binary.BigEndian.PutUint32(b, s.PN)
	buf.Write(b)

	binary.BigEndian.PutUint32(b, uint32(len(s.MKSkipped)))
	buf.Write(b)
	for k, v := range s.MKSkipped {
		buf.Write(k.dhPub[:])
		binary.BigEndian.PutUint32(b, k.n)
		buf.Write(b)
		buf.Write(v)
	}

	writeOptionalKey(&buf, s.X3DHEphemeral)
	if s.X3DHPreKeyID != nil {
		buf.WriteByte(1)
		binary.BigEndian.PutUint32(b, *s.X3DHPreKeyID)
		buf.Write(b)
	} else {
		buf.WriteByte(0)
	}
	binary.BigEndian.PutUint32(b, s.X3DHSignedPreKeyID)
	buf.Write(b)

	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes a ratchet state from bytes. The engine
// must be supplied by the caller (it is not persisted).
func (s *State) UnmarshalBinary(engine crypto.Engine, data []byte) error {
	s.engine = engine
	r := bytes.NewReader(data)

	dhsBytes := make([]byte, 32)
	if _, err := r.Read(dhsBytes); err != nil {
		return fmt.Errorf("%w: reading DHs: %v", ErrInvalidMessage, err)
	}
	var err error
	s.DHs, err = crypto.X25519PrivateKeyFromBytes(dhsBytes)
	if err != nil {
		return fmt.Errorf("%w: parsing DHs: %v", ErrInvalidMessage, err)
	}

	flag, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: reading DHr flag: %v", ErrInvalidMessage, err)
	}
	if flag == 1 {
		s.DHr = make([]byte, 32)
		if _, err := r.Read(s.DHr); err != nil {
			return fmt.Errorf("%w: reading DHr: %v", ErrInvalidMessage, err)
		}
	}

	s.RK = make([]byte, 32)
	if _, err := r.Read(s.RK); err != nil {
		return fmt.Errorf("%w: reading RK: %v", ErrInvalidMessage, err)
	}

	s.CKs, err = readOptionalKey(r)
	if err != nil {
		return fmt.Errorf("%w: reading CKs: %v", ErrInvalidMessage, err)
	}
	s.CKr, err = readOptionalKey(r)
	if err != nil {
		return fmt.Errorf("%w: reading CKr: %v", ErrInvalidMessage, err)
	}

	b := make([]byte, 4)
	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("%w: reading Ns: %v", ErrInvalidMessage, err)
	}
	s.Ns = binary.BigEndian.Uint32(b)

	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("%w: reading Nr: %v", ErrInvalidMessage, err)
	}
	s.Nr = binary.BigEndian.Uint32(b)

	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("%w: reading PN: %v", ErrInvalidMessage, err)
	}
	s.PN = binary.BigEndian.Uint32(b)

	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("%w: reading skipped count: %v", ErrInvalidMessage, err)
	}
	count := binary.BigEndian.Uint32(b)
	s.MKSkipped = make(map[skippedKey][]byte, count)

	for range count {
		var k skippedKey
		if _, err := r.Read(k.dhPub[:]); err != nil {
			return fmt.Errorf("%w: reading skipped dhPub: %v", ErrInvalidMessage, err)
		}
		if _, err := r.Read(b); err != nil {
			return fmt.Errorf("%w: reading skipped n: %v", ErrInvalidMessage, err)
		}
		k.n = binary.BigEndian.Uint32(b)
		mk := make([]byte, 32)
		if _, err := r.Read(mk); err != nil {
			return fmt.Errorf("%w: reading skipped mk: %v", ErrInvalidMessage, err)
		}
		s.MKSkipped[k] = mk
	}

	s.X3DHEphemeral, err = readOptionalKey(r)
	if err != nil {
		return fmt.Errorf("%w: reading X3DH ephemeral: %v", ErrInvalidMessage, err)
	}

	flag, err = r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: reading X3DH pre-key id flag: %v", ErrInvalidMessage, err)
	}
	if flag == 1 {
		if _, err := r.Read(b); err != nil {
			return fmt.Errorf("%w: reading X3DH pre-key id: %v", ErrInvalidMessage, err)
		}
		id := binary.BigEndian.Uint32(b)
		s.X3DHPreKeyID = &id
	}

	if _, err := r.Read(b); err != nil {
		return fmt.Errorf("%w: reading X3DH signed pre-key id: %v", ErrInvalidMessage, err)
	}
	s.X3DHSignedPreKeyID = binary.BigEndian.Uint32(b)

	return nil
}

func writeOptionalKey(buf *bytes.Buffer, key []byte) {
	if key != nil {
		buf.WriteByte(1)
		buf.Write(key)
	} else {
		buf.WriteByte(0)
	}
}

func readOptionalKey(r *bytes.Reader) ([]byte, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	key := make([]byte, 32)
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func freshX25519KeyPair() (*ecdh.PrivateKey, error) {
	return ecdh.X25519().GenerateKey(rand.Reader)
}
