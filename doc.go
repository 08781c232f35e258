// Package omemocore implements the OMEMO (XEP-0384) session and
// key-agreement engine: device-list discovery and reconciliation,
// pre-key-bundle publication and consumption, Double Ratchet session
// establishment and maintenance, per-message hybrid encryption, trust-state
// gating, and receive-path demultiplexing including carbon-copy and
// archive replay.
//
// The engine is transport-agnostic. It consumes small collaborator
// interfaces (package transport: Connection, PubSub, ElementCodec; package
// store: TrustCallback) rather than a concrete XMPP stack, so it can be wired
// into any XMPP client or server -- including
// github.com/meszmate/xmpp-go, whose crypto/omemo package this module's
// cryptographic core is grounded on.
//
// Package layout, leaves first:
//
//   - crypto:    CryptoEngine -- AEAD, key generation, fingerprints
//   - ratchet:   Double Ratchet state machine and X3DH key agreement
//   - store:     KeyStore -- persistence contract for keys and sessions
//   - wire:      OMEMO v0 wire element types
//   - transport: external collaborator interfaces plus an in-memory double
//   - registry:  DeviceRegistry
//   - bundle:    BundleService
//   - session:   SessionEngine
//   - trust:     TrustGate
//   - encrypt:   Encryptor
//   - decrypt:   Decryptor
//   - receive:   ReceivePipeline
//   - observer:  DeviceListObserver
//   - muc:       group-chat membership resolution
//
// The root package wires all of the above behind a single Core value
// guarded by one coarse mutex, as described in spec.md section 5.
package omemocore
