package app_test

import (
	"testing"

	"github.com/remotely/relay/internal/app"
)

func TestRegistryRegisterLookupUnregister(t *testing.T) {
	reg := app.NewRegistry()
	conn := &fakeConn{}

	if _, ok := reg.Lookup("alice"); ok {
		t.Fatalf("lookup before register must be absent")
	}

	reg.Register("alice", "c1", conn)

	got, ok := reg.Lookup("alice")
	if !ok || got != conn {
		t.Fatalf("lookup after register: got %v ok=%v", got, ok)
	}

	uid, ok := reg.Unregister("c1")
	if !ok || uid != "alice" {
		t.Fatalf("unregister returned %q ok=%v, want alice", uid, ok)
	}
	if _, ok := reg.Lookup("alice"); ok {
		t.Fatalf("lookup after unregister must be absent")
	}
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	reg := app.NewRegistry()
	if uid, ok := reg.Unregister("never-seen"); ok || uid != "" {
		t.Fatalf("unregister of unknown conn: got %q ok=%v", uid, ok)
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := app.NewRegistry()
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	reg.Register("alice", "c1", oldConn)
	prev, displaced := reg.Register("alice", "c2", newConn)
	if !displaced || prev != "c1" {
		t.Fatalf("second register: prev=%q displaced=%v, want c1 true", prev, displaced)
	}

	got, ok := reg.Lookup("alice")
	if !ok || got != newConn {
		t.Fatalf("lookup must resolve only the new connection")
	}

	// The superseded connection's late disconnect must not clear the
	// fresh registration.
	if uid, ok := reg.Unregister("c1"); ok {
		t.Fatalf("stale unregister must be a no-op, got %q", uid)
	}
	if _, ok := reg.Lookup("alice"); !ok {
		t.Fatalf("fresh registration lost after stale unregister")
	}
}

func TestRegistryRegisterReleasesOldIdentity(t *testing.T) {
	reg := app.NewRegistry()
	conn := &fakeConn{}

	reg.Register("alice", "c1", conn)
	reg.Register("bob", "c1", conn)

	// Signals addressed to alice must not land on a connection bob owns.
	if _, ok := reg.Lookup("alice"); ok {
		t.Fatalf("alice still resolvable after her connection took a new identity")
	}
	got, ok := reg.Lookup("bob")
	if !ok || got != conn {
		t.Fatalf("bob must resolve to the connection now")
	}
	if uid, ok := reg.UserOf("c1"); !ok || uid != "bob" {
		t.Fatalf("UserOf = %q ok=%v, want bob", uid, ok)
	}
}

func TestRegistryReRegisterSameConn(t *testing.T) {
	reg := app.NewRegistry()
	conn := &fakeConn{}
	reg.Register("alice", "c1", conn)
	if _, displaced := reg.Register("alice", "c1", conn); displaced {
		t.Fatalf("re-register on the same connection must not report displacement")
	}
}
