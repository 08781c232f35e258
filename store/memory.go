package store

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/meszmate/omemocore/crypto"
)

// deviceListEntry pairs a cached device-list state with its last refresh
// time, so DeviceRegistry.active_devices can decide whether it is stale.
type deviceListEntry struct {
	state       *DeviceListState
	refreshedAt time.Time
}

// trustKey is the (device, fingerprint) tuple the trust table is keyed on.
type trustKey struct {
	device      Device
	fingerprint string
}

// MemoryStore is an in-memory KeyStore for tests and small deployments.
// Unlike the teacher's TOFU-only memory_store.go, trust decisions are not
// derived from key equality: every tuple starts Undecided and is changed
// only by an explicit SetTrust call, matching the trust model this
// engine implements.
type MemoryStore struct {
	mu sync.RWMutex

	identityKey *crypto.IdentityKeyPair
	deviceID    uint32
	haveDevice  bool

	remoteKeys map[Device]ed25519.PublicKey
	trust      map[trustKey]TrustState

	preKeys       map[uint32]*PreKeyRecord
	signedPreKeys map[uint32]*SignedPreKeyRecord
	currentSPKID  uint32
	haveSPK       bool
	lastRotation  time.Time
	haveRotation  bool

	sessions    map[Device][]byte
	deviceLists map[string]deviceListEntry
	strikes     map[Device]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		remoteKeys:    make(map[Device]ed25519.PublicKey),
		trust:         make(map[trustKey]TrustState),
		preKeys:       make(map[uint32]*PreKeyRecord),
		signedPreKeys: make(map[uint32]*SignedPreKeyRecord),
		sessions:      make(map[Device][]byte),
		deviceLists:   make(map[string]deviceListEntry),
		strikes:       make(map[Device]int),
	}
}

func (s *MemoryStore) GetIdentityKeyPair() (*crypto.IdentityKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identityKey == nil {
		return nil, ErrNotInitialized
	}
	return s.identityKey, nil
}

func (s *MemoryStore) SaveIdentityKeyPair(ikp *crypto.IdentityKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identityKey = ikp
	return nil
}

func (s *MemoryStore) GetLocalDeviceID() (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveDevice {
		return 0, ErrNotInitialized
	}
	return s.deviceID, nil
}

func (s *MemoryStore) SaveLocalDeviceID(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = id
	s.haveDevice = true
	return nil
}

func (s *MemoryStore) GetRemoteIdentity(d Device) (ed25519.PublicKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.remoteKeys[d]
	return key, ok, nil
}

func (s *MemoryStore) SaveRemoteIdentity(d Device, key ed25519.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteKeys[d] = key
	return nil
}

func (s *MemoryStore) GetTrust(d Device, fingerprint string) (TrustState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.trust[trustKey{d, fingerprint}]
	if !ok {
		return Undecided, nil
	}
	return state, nil
}

func (s *MemoryStore) SetTrust(d Device, fingerprint string, state TrustState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[trustKey{d, fingerprint}] = state
	return nil
}

func (s *MemoryStore) GetPreKey(id uint32) (*PreKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.preKeys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return pk, nil
}

func (s *MemoryStore) SavePreKey(record *PreKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preKeys[record.ID] = record
	return nil
}

func (s *MemoryStore) RemovePreKey(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preKeys, id)
	return nil
}

func (s *MemoryStore) PreKeyCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.preKeys), nil
}

func (s *MemoryStore) AllPreKeyIDs() ([]uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint32, 0, len(s.preKeys))
	for id := range s.preKeys {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) GetSignedPreKey(id uint32) (*SignedPreKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spk, ok := s.signedPreKeys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return spk, nil
}

func (s *MemoryStore) SaveSignedPreKey(record *SignedPreKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedPreKeys[record.ID] = record
	s.currentSPKID = record.ID
	s.haveSPK = true
	return nil
}

func (s *MemoryStore) CurrentSignedPreKeyID() (uint32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSPKID, s.haveSPK, nil
}

func (s *MemoryStore) RetireSignedPreKey(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentSPKID == id {
		s.haveSPK = false
	}
	return nil
}

func (s *MemoryStore) PruneSignedPreKeys(olderThan time.Time) error {
	// The reference store does not prune: every signed pre-key it has
	// saved stays retrievable through GetSignedPreKey, whatever its age
	// and however many generations have been saved since.
	return nil
}

func (s *MemoryStore) GetLastRotation() (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRotation, s.haveRotation, nil
}

func (s *MemoryStore) SaveLastRotation(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRotation = t
	s.haveRotation = true
	return nil
}

func (s *MemoryStore) GetSession(d Device) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[d]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (s *MemoryStore) SaveSession(d Device, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.sessions[d] = cp
	return nil
}

func (s *MemoryStore) DeleteSession(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, d)
	return nil
}

func (s *MemoryStore) GetDeviceList(owner string) (*DeviceListState, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.deviceLists[owner]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return entry.state, entry.refreshedAt, true, nil
}

func (s *MemoryStore) SaveDeviceList(owner string, state *DeviceListState, refreshedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceLists[owner] = deviceListEntry{state: state, refreshedAt: refreshedAt}
	return nil
}

func (s *MemoryStore) CorruptionStrikes(d Device) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strikes[d], nil
}

func (s *MemoryStore) RecordCorruption(d Device) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strikes[d]++
	return s.strikes[d], nil
}

func (s *MemoryStore) ClearCorruption(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.strikes, d)
	return nil
}

var _ KeyStore = (*MemoryStore)(nil)
