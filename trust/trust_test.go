package trust

import (
	"testing"

	omemocrypto "github.com/meszmate/omemocore/crypto"
	"github.com/meszmate/omemocore/store"
)

func setupGate(t *testing.T) (*Gate, store.Device, omemocrypto.Engine) {
	t.Helper()
	engine := omemocrypto.NewDefaultEngine()
	keyStore := store.NewMemoryStore()
	identity, err := engine.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}
	device := store.Device{OwnerJID: "bob@example.com", DeviceID: 2001}
	if err := keyStore.SaveRemoteIdentity(device, identity.PublicKey); err != nil {
		t.Fatal(err)
	}
	return New(engine, keyStore), device, engine
}

func TestGateResolveBeforeCallbackFails(t *testing.T) {
	gate, device, _ := setupGate(t)
	if _, err := gate.Resolve(device); err == nil {
		t.Error("expected an error resolving trust before a callback is installed")
	}
}

func TestGateSetCallbackOnlyOnce(t *testing.T) {
	gate, _, _ := setupGate(t)
	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		t.Fatal(err)
	}
	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err == nil {
		t.Error("expected second SetCallback to fail")
	}
}

func TestGateFilterTrustedKept(t *testing.T) {
	gate, device, _ := setupGate(t)
	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		t.Fatal(err)
	}
	kept, err := gate.Filter([]store.Device{device})
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0] != device {
		t.Errorf("kept = %v, want [%v]", kept, device)
	}
}

func TestGateFilterUntrustedDroppedSilently(t *testing.T) {
	gate, device, _ := setupGate(t)
	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Untrusted }); err != nil {
		t.Fatal(err)
	}
	kept, err := gate.Filter([]store.Device{device})
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 0 {
		t.Errorf("kept = %v, want empty", kept)
	}
}

func TestGateFilterUndecidedAbortsWholeCall(t *testing.T) {
	gate, device, engine := setupGate(t)
	second := store.Device{OwnerJID: "carol@example.com", DeviceID: 3001}
	carolIdentity, err := engine.GenerateIdentity()
	if err != nil {
		t.Fatal(err)
	}

	ms := gate.keyStore.(*store.MemoryStore)
	if err := ms.SaveRemoteIdentity(second, carolIdentity.PublicKey); err != nil {
		t.Fatal(err)
	}

	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Undecided }); err != nil {
		t.Fatal(err)
	}

	_, err = gate.Filter([]store.Device{device, second})
	if err == nil {
		t.Fatal("expected UndecidedDevices error")
	}
}

func TestGateFingerprintIsLowercase64Hex(t *testing.T) {
	gate, device, _ := setupGate(t)
	if err := gate.SetCallback(func(store.Device, string) store.TrustState { return store.Trusted }); err != nil {
		t.Fatal(err)
	}
	fp, err := gate.Fingerprint(device)
	if err != nil {
		t.Fatal(err)
	}
	if len(fp) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(fp))
	}
	for _, r := range fp {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Errorf("fingerprint %q is not lowercase hex", fp)
			break
		}
	}
}
