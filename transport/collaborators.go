package transport

import "context"

// AccessModel controls who may fetch a published pub-sub item.
type AccessModel string

const AccessOpen AccessModel = "open"

// Item is one published pub-sub item: an id and its raw XML payload.
type Item struct {
	ID      string
	Payload []byte
}

// PubSub exposes node publish/fetch/delete with access-model control, the
// external collaborator section 1 names for device-list and bundle
// publication. BundleService and DeviceRegistry are built against this,
// never against a concrete XMPP pub-sub stack.
type PubSub interface {
	// Publish writes item to node under access, creating the node if
	// necessary. Republishing the same item id replaces it.
	Publish(ctx context.Context, jid, node string, access AccessModel, item Item) error

	// Fetch retrieves the current items on a node for jid. Returns an
	// empty slice, not an error, if the node has no items yet.
	Fetch(ctx context.Context, jid, node string) ([]Item, error)

	// Delete removes a node entirely.
	Delete(ctx context.Context, jid, node string) error
}

// DeviceListEvent is delivered to a subscriber when a device-list node
// changes, synchronously from the pub-sub transport's own dispatch
// goroutine -- handlers must not block (section 9's deadlock note).
// Owner is the bare jid the list belongs to; an event with no owner (the
// teacher's null `from` case) is never constructed by a conformant
// transport and must be dropped by the caller if seen.
type DeviceListEvent struct {
	Owner     string
	DeviceIDs []uint32
}

// Connection exposes stanza send and device-list event delivery. The
// core never parses XML itself; ElementCodec does that. This package has
// no stanza-level implementation: a full client supplies one over its own
// XMPP stream.
type Connection interface {
	// SendMessage delivers a message stanza containing payload (already
	// XML-encoded by ElementCodec) to to.
	SendMessage(ctx context.Context, to string, payload []byte) error

	// Subscribe registers a callback for device-list pub-sub
	// notifications. The callback runs on the transport's notification
	// goroutine and must re-dispatch any republish itself.
	Subscribe(handler func(DeviceListEvent))
}

// ElementCodec serializes and parses the wire element types to and from
// the bytes a Connection or PubSub carries, keeping the core from
// importing an XML stanza stack directly.
type ElementCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
