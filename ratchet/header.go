package ratchet

import (
	"encoding/binary"
	"fmt"
)

// Header carries the public ratchet information sent with each message:
// the sender's current DH ratchet public key and the chain counters
// needed to detect a DH ratchet step and skipped messages.
type Header struct {
	DHPub []byte // 32 bytes, X25519 public ratchet key
	N     uint32 // message number in the sending chain
	PN    uint32 // length of the previous sending chain
}

const HeaderSize = 32 + 4 + 4 // 40 bytes

// MarshalBinary encodes a Header to bytes.
func (h *Header) MarshalBinary() ([]byte, error) {
	if len(h.DHPub) != 32 {
		return nil, ErrInvalidMessage
	}
	buf := make([]byte, HeaderSize)
	copy(buf[:32], h.DHPub)
	binary.BigEndian.PutUint32(buf[32:36], h.N)
	binary.BigEndian.PutUint32(buf[36:40], h.PN)
	return buf, nil
}

// UnmarshalBinary decodes a Header from bytes.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: header size %d, expected %d", ErrInvalidMessage, len(data), HeaderSize)
	}
	h.DHPub = make([]byte, 32)
	copy(h.DHPub, data[:32])
	h.N = binary.BigEndian.Uint32(data[32:36])
	h.PN = binary.BigEndian.Uint32(data[36:40])
	return nil
}
