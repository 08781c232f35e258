package crypto

import "errors"

var (
	ErrInvalidKeyLength = errors.New("crypto: invalid key length")
	ErrInvalidMessage   = errors.New("crypto: invalid message")
)
