// Package config loads the OMEMO engine's tunables from environment
// variables, in the style of the teacher's cmd/xmppd/config.go
// (getenv/getenvBool/getenvInt/getenvDuration), for the module's own
// cmd/omemoctl entry point.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meszmate/omemocore/bundle"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/registry"
)

// Options carries the engine's numeric tunables: pre-key pool sizing,
// signed pre-key rotation timing, and the device registry's staleness
// threshold. It has no fields for the message hint options (the EME
// hint, the storage hint and the fallback body).
type Options struct {
	OwnJID   string
	DeviceID uint32

	PreKeyPoolTarget   int
	PreKeyPoolLowWater int
	SignedPreKeyMaxAge time.Duration
	SignedPreKeyGrace  time.Duration
	StaleThreshold     time.Duration

	// UseAES256 opts into 32-byte AES keys instead of OMEMO v0's default
	// 16-byte AES-128 (crypto.WithAES256).
	UseAES256 bool
}

// Load reads Options from the environment, falling back to the defaults
// named in section 6 for anything unset.
func Load() Options {
	return Options{
		OwnJID:   os.Getenv("OMEMO_JID"),
		DeviceID: uint32(getenvInt("OMEMO_DEVICE_ID", 1)),

		PreKeyPoolTarget:   getenvInt("OMEMO_PREKEY_POOL_TARGET", bundle.DefaultPoolTarget),
		PreKeyPoolLowWater: getenvInt("OMEMO_PREKEY_POOL_LOW_WATER", bundle.DefaultPoolLowWater),
		SignedPreKeyMaxAge: getenvDuration("OMEMO_SIGNED_PREKEY_MAX_AGE", bundle.DefaultSignedMaxAge),
		SignedPreKeyGrace:  getenvDuration("OMEMO_SIGNED_PREKEY_GRACE", bundle.DefaultSignedGrace),
		StaleThreshold:     getenvDuration("OMEMO_STALE_THRESHOLD", registry.StaleThreshold),
		UseAES256:          getenvBool("OMEMO_AES256", false),
	}
}

// CryptoOptions returns the crypto.Option set Load's UseAES256 implies.
func (o Options) CryptoOptions() []omemocrypto.Option {
	if o.UseAES256 {
		return []omemocrypto.Option{omemocrypto.WithAES256()}
	}
	return nil
}

// BundleOptions projects the pre-key and signed-pre-key rows onto
// bundle.Options.
func (o Options) BundleOptions() bundle.Options {
	return bundle.Options{
		PoolTarget:   o.PreKeyPoolTarget,
		PoolLowWater: o.PreKeyPoolLowWater,
		SignedMaxAge: o.SignedPreKeyMaxAge,
		SignedGrace:  o.SignedPreKeyGrace,
	}
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
