package ratchet

import "errors"

var (
	ErrInvalidMessage    = errors.New("ratchet: invalid message")
	ErrSkippedKeyLimit   = errors.New("ratchet: too many skipped message keys")
	ErrInvalidSignature  = errors.New("ratchet: invalid signed pre-key signature")
)

// MaxSkippedKeys bounds the number of skipped-message keys retained per
// chain, per spec section 3's MAX_SKIP invariant.
const MaxSkippedKeys = 1000
