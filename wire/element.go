// Package wire defines the XML wire elements the session engine emits and
// consumes: the OMEMO v0 encrypted envelope, device-list and bundle
// elements, and the EME hint, grounded on the teacher's plugins/omemo,
// plugins/pubsub, and plugins/carbons. Stanza transport and generic
// pub-sub IQ plumbing are out of scope here (see the transport package);
// this package only owns marshaling the OMEMO-specific payloads.
package wire

import (
	"encoding/base64"
	"encoding/xml"

	"github.com/meszmate/omemocore/internal/ns"
)

// Encrypted is the `encrypted` element per section 6: namespace
// eu.siacs.conversations.axolotl / urn:xmpp:omemo:0, one header with the
// sender device id, iv, and per-recipient keys, and an optional payload.
// A nil Payload marks a key-transport element.
type Encrypted struct {
	XMLName xml.Name `xml:"eu.siacs.conversations.axolotl encrypted"`
	Header  Header   `xml:"header"`
	Payload *Payload `xml:"payload,omitempty"`
}

type Header struct {
	XMLName xml.Name `xml:"header"`
	SID     uint32   `xml:"sid,attr"`
	Keys    []Key    `xml:"key"`
	IV      string   `xml:"iv"`
}

type Key struct {
	XMLName xml.Name `xml:"key"`
	RID     uint32   `xml:"rid,attr"`
	Prekey  bool     `xml:"prekey,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

type Payload struct {
	XMLName xml.Name `xml:"payload"`
	Value   string   `xml:",chardata"`
}

// EME is the XEP-0380 Explicit Message Encryption hint, attached to the
// surrounding <message/> alongside Encrypted when add_eme_hint is set.
type EME struct {
	XMLName   xml.Name `xml:"urn:xmpp:eme:0 encryption"`
	Namespace string   `xml:"namespace,attr"`
	Name      string   `xml:"name,attr,omitempty"`
}

// NewEME returns the EME hint naming the OMEMO v0 namespace.
func NewEME() EME {
	return EME{Namespace: ns.OMEMOv0, Name: "OMEMO"}
}

// KeyEntry is the in-memory form of one recipient's wrapped key, before
// base64 encoding onto the wire.
type KeyEntry struct {
	RecipientDeviceID uint32
	IsPreKey          bool
	Wrapped           []byte // payload_key ‖ auth_tag, ratchet-encrypted
}

// EncodeEncrypted builds the wire Encrypted element from domain values.
// payload is nil for a key-transport element (invariant: OmemoElement
// payload may be absent).
func EncodeEncrypted(senderDeviceID uint32, iv []byte, keys []KeyEntry, payload []byte) *Encrypted {
	wireKeys := make([]Key, len(keys))
	for i, k := range keys {
		wireKeys[i] = Key{
			RID:    k.RecipientDeviceID,
			Prekey: k.IsPreKey,
			Value:  base64.StdEncoding.EncodeToString(k.Wrapped),
		}
	}

	el := &Encrypted{
		Header: Header{
			SID:  senderDeviceID,
			Keys: wireKeys,
			IV:   base64.StdEncoding.EncodeToString(iv),
		},
	}
	if payload != nil {
		el.Payload = &Payload{Value: base64.StdEncoding.EncodeToString(payload)}
	}
	return el
}

// DecodeIV base64-decodes the header's iv field.
func (h *Header) DecodeIV() ([]byte, error) {
	return base64.StdEncoding.DecodeString(h.IV)
}

// DecodeValue base64-decodes one key's wrapped material.
func (k *Key) DecodeValue() ([]byte, error) {
	return base64.StdEncoding.DecodeString(k.Value)
}

// DecodePayload base64-decodes the payload ciphertext, if present.
func (p *Payload) DecodePayload() ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(p.Value)
}

// KeyFor finds the key entry addressed to rid, the caller's own device id.
func (h *Header) KeyFor(rid uint32) (*Key, bool) {
	for i := range h.Keys {
		if h.Keys[i].RID == rid {
			return &h.Keys[i], true
		}
	}
	return nil, false
}
