// Package memorynet is an in-process double for transport.PubSub and
// transport.Connection, used by tests and by the scenario fixtures in
// section 8 in place of a live XMPP server.
package memorynet

import (
	"context"
	"encoding/xml"
	"sync"

	"github.com/meszmate/omemocore/transport"
)

// Network is a shared in-memory broker: every PubSub it hands out
// publishes to and fetches from the same node table, and every
// Connection registered against it can deliver messages and device-list
// events to every other registered jid.
type Network struct {
	mu sync.Mutex

	// nodes["jid"]["node name"] -> items, most-recently-published last.
	nodes map[string]map[string][]transport.Item

	subscribers []func(transport.DeviceListEvent)
	inboxes     map[string][]Delivery
}

// Delivery records one message handed to SendMessage, for tests to
// assert on without a real Connection.
type Delivery struct {
	To      string
	Payload []byte
}

func New() *Network {
	return &Network{
		nodes:   make(map[string]map[string][]transport.Item),
		inboxes: make(map[string][]Delivery),
	}
}

// PubSub returns a transport.PubSub over the network's shared node table.
// It is bound to no owner: every Publish/Fetch/Delete call names the jid
// whose nodes it touches, and an empty jid is just another key.
func (n *Network) PubSub() transport.PubSub { return &pubsub{net: n} }

// Connection returns a transport.Connection for jid, so SendMessage
// deliveries and Subscribe registrations are attributed to that device.
func (n *Network) Connection(jid string) transport.Connection {
	return &connection{net: n, jid: jid}
}

// NotifyDeviceList fires a DeviceListEvent to every subscriber, as a
// pub-sub server would after Publish to a devicelist node. Tests drive
// this directly rather than relying on PubSub.Publish to auto-notify,
// since section 8's scenarios care about the exact event sequence.
func (n *Network) NotifyDeviceList(owner string, deviceIDs []uint32) {
	n.mu.Lock()
	handlers := append([]func(transport.DeviceListEvent){}, n.subscribers...)
	n.mu.Unlock()

	ev := transport.DeviceListEvent{Owner: owner, DeviceIDs: deviceIDs}
	for _, h := range handlers {
		h(ev)
	}
}

// Inbox returns the messages delivered to jid via SendMessage, in order.
func (n *Network) Inbox(jid string) []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Delivery{}, n.inboxes[jid]...)
}

type pubsub struct{ net *Network }

func (p *pubsub) Publish(_ context.Context, jid, node string, _ transport.AccessModel, item transport.Item) error {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()

	byNode, ok := p.net.nodes[jid]
	if !ok {
		byNode = make(map[string][]transport.Item)
		p.net.nodes[jid] = byNode
	}
	items := byNode[node]
	for i, existing := range items {
		if existing.ID == item.ID {
			items[i] = item
			byNode[node] = items
			return nil
		}
	}
	byNode[node] = append(items, item)
	return nil
}

func (p *pubsub) Fetch(_ context.Context, jid, node string) ([]transport.Item, error) {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()

	byNode, ok := p.net.nodes[jid]
	if !ok {
		return nil, nil
	}
	return append([]transport.Item{}, byNode[node]...), nil
}

func (p *pubsub) Delete(_ context.Context, jid, node string) error {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	if byNode, ok := p.net.nodes[jid]; ok {
		delete(byNode, node)
	}
	return nil
}

type connection struct {
	net *Network
	jid string
}

func (c *connection) SendMessage(_ context.Context, to string, payload []byte) error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()
	c.net.inboxes[to] = append(c.net.inboxes[to], Delivery{To: to, Payload: payload})
	return nil
}

func (c *connection) Subscribe(handler func(transport.DeviceListEvent)) {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()
	c.net.subscribers = append(c.net.subscribers, handler)
}

// Codec is the trivial transport.ElementCodec backed by encoding/xml,
// matching how the teacher's stanza layer marshals plugin payload types.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)          { return xml.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error     { return xml.Unmarshal(data, v) }

var (
	_ transport.PubSub       = (*pubsub)(nil)
	_ transport.Connection   = (*connection)(nil)
	_ transport.ElementCodec = Codec{}
)
