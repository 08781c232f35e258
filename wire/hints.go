package wire

import "encoding/xml"

// StoreHint is XEP-0334's <store/> hint, attached when add_mam_storage_hint
// requests archival of an otherwise bodiless encrypted message.
type StoreHint struct {
	XMLName xml.Name `xml:"urn:xmpp:hints store"`
}

// OmemoHintBody is the sentinel plaintext body sent alongside an
// encrypted element for clients without OMEMO support, enabled by
// add_omemo_hint_body.
const OmemoHintBody = "This message is encrypted with OMEMO, but your client does not support it."
