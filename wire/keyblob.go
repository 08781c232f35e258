package wire

import (
	"encoding/binary"
	"fmt"
)

// EncodeKeyBlob frames the ratchet message header, the wrapped
// payload-key material, and (for pre-key messages) the X3DH prelude
// into the single opaque blob carried as a key element's base64 value.
// A real libsignal-style wire format folds these into one protobuf
// message; this does the equivalent with fixed length-prefixed fields.
func EncodeKeyBlob(header, wrapped, prelude []byte) []byte {
	buf := make([]byte, 0, 12+len(header)+len(wrapped)+len(prelude))
	buf = appendLenPrefixed(buf, header)
	buf = appendLenPrefixed(buf, wrapped)
	buf = appendLenPrefixed(buf, prelude)
	return buf
}

// DecodeKeyBlob reverses EncodeKeyBlob. prelude is empty (not nil) when
// the message carried none.
func DecodeKeyBlob(blob []byte) (header, wrapped, prelude []byte, err error) {
	header, rest, err := readLenPrefixed(blob)
	if err != nil {
		return nil, nil, nil, err
	}
	wrapped, rest, err = readLenPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}
	prelude, rest, err = readLenPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, nil, fmt.Errorf("wire: %d trailing bytes in key blob", len(rest))
	}
	return header, wrapped, prelude, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(data)))
	buf = append(buf, l[:]...)
	return append(buf, data...)
}

func readLenPrefixed(r []byte) (data, rest []byte, err error) {
	if len(r) < 4 {
		return nil, nil, fmt.Errorf("wire: truncated length-prefixed field")
	}
	n := binary.BigEndian.Uint32(r[:4])
	r = r[4:]
	if uint64(len(r)) < uint64(n) {
		return nil, nil, fmt.Errorf("wire: truncated length-prefixed field")
	}
	return r[:n], r[n:], nil
}
