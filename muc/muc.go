// Package muc resolves a group-chat room to the member identities an
// OMEMO send must expand to (section 4.K), grounded on the teacher's
// plugins/muc room and affiliation model, trimmed to the fields OMEMO
// membership resolution needs.
package muc

import (
	"sync"

	"github.com/meszmate/omemocore/omemoerr"
)

// Affiliations, carried over from the teacher's plugins/muc for the
// subset OMEMO membership checks care about: an outcast or none-level
// occupant is not a member and is excluded from the resolved roster.
const (
	AffOwner   = "owner"
	AffAdmin   = "admin"
	AffMember  = "member"
	AffOutcast = "outcast"
	AffNone    = "none"
)

// Config is the subset of a room's configuration form relevant to OMEMO
// eligibility: a room must be both members-only and non-anonymous for
// the server to guarantee every occupant's real bare jid is known and
// stable, which OMEMO's device-list-per-identity model depends on.
type Config struct {
	MembersOnly  bool
	NonAnonymous bool
}

// Eligible reports whether a room's configuration permits OMEMO.
func (c Config) Eligible() bool {
	return c.MembersOnly && c.NonAnonymous
}

// Occupant is one member of a room, as resolved from its member/admin/
// owner list (not the transient nickname roster).
type Occupant struct {
	BareJID     string
	Affiliation string
}

func (o Occupant) isMember() bool {
	switch o.Affiliation {
	case AffOwner, AffAdmin, AffMember:
		return true
	default:
		return false
	}
}

// Room tracks one joined room's configuration and member list, as
// reported by the room's MUC#admin queries (owner/admin/member lists).
type Room struct {
	JID       string
	Config    Config
	Occupants []Occupant
}

// Registry caches known rooms by jid; membership resolution reads from
// it rather than issuing a fresh admin query per send.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// SaveRoom records (or replaces) a room's config and membership, as
// learned from joining it or from an admin-query response.
func (r *Registry) SaveRoom(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.JID] = room
}

// ResolveMembers expands roomJID to its member bare jids. It returns
// omemoerr.ErrNoOmemoSupport if the room is unknown or its
// configuration is not both members-only and non-anonymous.
func (r *Registry) ResolveMembers(roomJID string) ([]string, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomJID]
	r.mu.RUnlock()

	if !ok || !room.Config.Eligible() {
		return nil, omemoerr.ErrNoOmemoSupport
	}

	jids := make([]string, 0, len(room.Occupants))
	for _, occ := range room.Occupants {
		if occ.isMember() {
			jids = append(jids, occ.BareJID)
		}
	}
	return jids, nil
}
