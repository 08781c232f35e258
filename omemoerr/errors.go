// Package omemoerr defines the error taxonomy for the OMEMO session engine.
//
// Per-message and configuration errors are flat sentinels, in the style of
// the teacher's crypto/omemo/errors.go. Errors that carry a structured
// payload (a list of affected devices, a partial success/failure split)
// are typed values constructed with a function, in the style of the
// teacher's root errors.go (ErrConflict, ErrNotAllowed, ...).
package omemoerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meszmate/omemocore/store"
)

// Configuration errors: fatal, surfaced immediately.
var (
	ErrNotInitialized = errors.New("omemocore: core not initialized")
	ErrNoTrustCallback = errors.New("omemocore: no trust callback installed")
	ErrTrustCallbackSet = errors.New("omemocore: trust callback already installed")
)

// Identity errors: fatal for the affected operation, does not taint other peers.
var (
	ErrCorruptedKey      = errors.New("omemocore: corrupted key material")
	ErrMissingFingerprint = errors.New("omemocore: missing fingerprint for device")
)

// Session errors.
var (
	ErrNoBundle     = errors.New("omemocore: no bundle available for device")
	ErrBadSignature = errors.New("omemocore: signed pre-key signature verification failed")
)

// Crypto errors: per-message, the message is dropped.
var (
	ErrAuthFailure     = errors.New("omemocore: AEAD authentication failed")
	ErrSkippedOverflow = errors.New("omemocore: too many skipped ratchet messages")
	ErrCorrupted       = errors.New("omemocore: ratchet message corrupted")
)

// Transport errors: transient, the caller retries.
var (
	ErrNotConnected = errors.New("omemocore: not connected")
	ErrNoResponse   = errors.New("omemocore: no response from peer")
	ErrInterrupted  = errors.New("omemocore: operation interrupted")
)

// Protocol errors.
var (
	ErrNoOmemoSupport = errors.New("omemocore: room does not support OMEMO (must be members-only and non-anonymous)")
)

// Receive-path errors (not necessarily fatal -- the pipeline skips these).
var (
	ErrNotForUs = errors.New("omemocore: encrypted element has no entry for our device")
)

// UndecidedDevices is returned when a send would include a device whose
// trust state has not yet been resolved by the TrustCallback. The send
// aborts before any ciphertext is produced.
type UndecidedDevices struct {
	Devices []store.Device
}

func NewUndecidedDevices(devices []store.Device) *UndecidedDevices {
	return &UndecidedDevices{Devices: devices}
}

func (e *UndecidedDevices) Error() string {
	parts := make([]string, len(e.Devices))
	for i, d := range e.Devices {
		parts[i] = d.String()
	}
	return fmt.Sprintf("omemocore: undecided trust for devices: %s", strings.Join(parts, ", "))
}

// CannotEstablish is returned when session establishment failed for a
// subset of the intended recipient devices. Callers may retry against
// Successes only via an explicit "encrypt-for-existing-sessions" call.
type CannotEstablish struct {
	Successes []store.Device
	Failures  map[store.Device]error
}

func NewCannotEstablish(successes []store.Device, failures map[store.Device]error) *CannotEstablish {
	return &CannotEstablish{Successes: successes, Failures: failures}
}

func (e *CannotEstablish) Error() string {
	return fmt.Sprintf("omemocore: session establishment failed for %d of %d devices",
		len(e.Failures), len(e.Successes)+len(e.Failures))
}
