// Command omemoctl provisions an OMEMO device and, optionally, drives a
// scripted two-party send/receive demo against the in-memory
// transport/memorynet double, the way cmd/xmppd lets an operator stand
// up a server without a real client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/meszmate/omemocore"
	"github.com/meszmate/omemocore/config"
	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/internal/ns"
	"github.com/meszmate/omemocore/receive"
	"github.com/meszmate/omemocore/store"
	"github.com/meszmate/omemocore/transport"
	"github.com/meszmate/omemocore/transport/memorynet"
	"github.com/meszmate/omemocore/wire"
)

func main() {
	demo := flag.Bool("demo", false, "after provisioning, send and receive one round-trip message against a second in-process device")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.OwnJID == "" {
		log.Fatalf("OMEMO_JID must be set")
	}

	net := memorynet.New()
	codec := memorynet.Codec{}

	core, fp, err := provision(ctx, net, codec, cfg)
	if err != nil {
		log.Fatalf("provision: %v", err)
	}
	log.Printf("omemoctl: provisioned device %s/%d, fingerprint=%s", cfg.OwnJID, cfg.DeviceID, fp)

	if !*demo {
		return
	}

	peerCfg := cfg
	peerCfg.OwnJID = "peer." + cfg.OwnJID
	peerCfg.DeviceID = cfg.DeviceID + 1000
	peer, peerFP, err := provision(ctx, net, codec, peerCfg)
	if err != nil {
		log.Fatalf("provision peer: %v", err)
	}
	log.Printf("omemoctl: provisioned demo peer %s/%d, fingerprint=%s", peerCfg.OwnJID, peerCfg.DeviceID, peerFP)

	if err := core.SetTrustCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		log.Fatalf("trust callback: %v", err)
	}
	if err := peer.SetTrustCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		log.Fatalf("trust callback: %v", err)
	}
	core.Attach(net.Connection(cfg.OwnJID))
	peer.Attach(net.Connection(peerCfg.OwnJID))

	if _, err := core.Send(ctx, []string{peerCfg.OwnJID}, []byte("hello from omemoctl")); err != nil {
		log.Fatalf("send: %v", err)
	}

	for _, d := range net.Inbox(peerCfg.OwnJID) {
		var el wire.Encrypted
		if err := codec.Unmarshal(d.Payload, &el); err != nil {
			log.Fatalf("decode: %v", err)
		}
		msg, ok, err := peer.Receive(ctx, cfg.OwnJID, cfg.DeviceID, &el, receive.SourceDirect)
		if err != nil {
			log.Fatalf("receive: %v", err)
		}
		if !ok {
			continue
		}
		log.Printf("omemoctl: peer decrypted: %q", string(msg.Plaintext))
	}
}

// provision bootstraps a fresh identity and bundle for cfg into an
// in-memory KeyStore and publishes its device-list entry to net, in the
// same sequence Bootstrap uses for a real pub-sub service.
func provision(ctx context.Context, net *memorynet.Network, codec transport.ElementCodec, cfg config.Options) (*omemocore.Core, string, error) {
	keyStore := store.NewMemoryStore()
	engine := omemocrypto.NewDefaultEngine(cfg.CryptoOptions()...)

	publish := func(ctx context.Context, ids []uint32) error {
		payload, err := codec.Marshal(wire.EncodeDeviceList(ids))
		if err != nil {
			return err
		}
		return net.PubSub().Publish(ctx, cfg.OwnJID, ns.OMEMOv0DeviceList, transport.AccessOpen, transport.Item{ID: "current", Payload: payload})
	}

	core, err := omemocore.Bootstrap(ctx, cfg, engine, keyStore, net.PubSub(), codec, publish)
	if err != nil {
		return nil, "", fmt.Errorf("bootstrap: %w", err)
	}
	if err := publish(ctx, []uint32{cfg.DeviceID}); err != nil {
		return nil, "", fmt.Errorf("publish device list: %w", err)
	}

	// Core.Fingerprint renders a remote peer's identity (resolved via the
	// trust gate's GetRemoteIdentity lookup); the local device's own
	// fingerprint comes straight from the identity key just generated.
	identity, err := keyStore.GetIdentityKeyPair()
	if err != nil {
		return nil, "", err
	}
	fp := engine.Fingerprint(identity.PublicKey)
	return core, fp, nil
}
