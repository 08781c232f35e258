// Package store defines the persistence interface for OMEMO state --
// identities, pre-keys, sessions, device lists, and trust decisions -- and
// a reference in-memory implementation for tests and small deployments.
package store

import (
	"fmt"

	"github.com/meszmate/omemocore/crypto"
)

// Device identifies one client instance: a bare JID plus a device id.
// Device ids are assigned by the owning identity and are only unique
// within that identity's own device list.
type Device struct {
	OwnerJID string
	DeviceID uint32
}

func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.OwnerJID, d.DeviceID)
}

// PreKeyRecord and SignedPreKeyRecord are the same shape the CryptoEngine
// generates (crypto.PreKeyRecord, crypto.SignedPreKeyRecord); aliased
// here so store callers don't need to import crypto just to name the
// type they are persisting.
type PreKeyRecord = crypto.PreKeyRecord
type SignedPreKeyRecord = crypto.SignedPreKeyRecord

// DeviceListState is the per-device liveness the cached list tracks for
// one owning identity: active devices are currently published; inactive
// devices were seen before and are retained for fingerprint history but
// are no longer offered as send recipients.
type DeviceListState struct {
	Active   map[uint32]bool
	Inactive map[uint32]bool
}

// NewDeviceListState returns an empty state with both sets initialized.
func NewDeviceListState() *DeviceListState {
	return &DeviceListState{
		Active:   make(map[uint32]bool),
		Inactive: make(map[uint32]bool),
	}
}

// Devices returns the active set as Device values scoped to owner.
func (s *DeviceListState) Devices(owner string) []Device {
	out := make([]Device, 0, len(s.Active))
	for id := range s.Active {
		out = append(out, Device{OwnerJID: owner, DeviceID: id})
	}
	return out
}
