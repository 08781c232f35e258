package store

// TrustState reflects whether the local user has decided to accept a
// peer's identity key. Every (device, fingerprint) pair starts Undecided
// the first time it is seen.
type TrustState int

const (
	Undecided TrustState = iota
	Trusted
	Untrusted
)

func (t TrustState) String() string {
	switch t {
	case Trusted:
		return "trusted"
	case Untrusted:
		return "untrusted"
	default:
		return "undecided"
	}
}

// TrustCallback is consulted the first time a device's fingerprint is
// seen, and again on later lookups only while the answer stays
// Undecided; a Trusted or Untrusted answer is stored and not asked again.
// It must be installed at most once per Core instance.
type TrustCallback func(device Device, fingerprint string) TrustState
