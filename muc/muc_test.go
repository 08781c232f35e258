package muc

import "testing"

func TestResolveMembersEligibleRoom(t *testing.T) {
	reg := NewRegistry()
	reg.SaveRoom(&Room{
		JID:    "room@conference.example.com",
		Config: Config{MembersOnly: true, NonAnonymous: true},
		Occupants: []Occupant{
			{BareJID: "alice@example.com", Affiliation: AffOwner},
			{BareJID: "bob@example.com", Affiliation: AffMember},
			{BareJID: "carol@example.com", Affiliation: AffMember},
			{BareJID: "mallory@example.com", Affiliation: AffOutcast},
		},
	})

	members, err := reg.ResolveMembers("room@conference.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 3 {
		t.Fatalf("len(members) = %d, want 3", len(members))
	}
	want := map[string]bool{"alice@example.com": true, "bob@example.com": true, "carol@example.com": true}
	for _, m := range members {
		if !want[m] {
			t.Errorf("unexpected member %q", m)
		}
	}
}

func TestResolveMembersRejectsNonMembersOnly(t *testing.T) {
	reg := NewRegistry()
	reg.SaveRoom(&Room{
		JID:    "public@conference.example.com",
		Config: Config{MembersOnly: false, NonAnonymous: true},
	})

	if _, err := reg.ResolveMembers("public@conference.example.com"); err == nil {
		t.Error("expected NoOmemoSupport for a non-members-only room")
	}
}

func TestResolveMembersRejectsAnonymous(t *testing.T) {
	reg := NewRegistry()
	reg.SaveRoom(&Room{
		JID:    "anon@conference.example.com",
		Config: Config{MembersOnly: true, NonAnonymous: false},
	})

	if _, err := reg.ResolveMembers("anon@conference.example.com"); err == nil {
		t.Error("expected NoOmemoSupport for an anonymous room")
	}
}

func TestResolveMembersUnknownRoom(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.ResolveMembers("missing@conference.example.com"); err == nil {
		t.Error("expected NoOmemoSupport for an unknown room")
	}
}
