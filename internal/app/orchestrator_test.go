package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remotely/relay/internal/app"
)

func newOrchestrator(store *fakeStore) *app.Orchestrator {
	reg := app.NewRegistry()
	return &app.Orchestrator{
		Registry: reg,
		Rooms:    app.NewRooms(),
		Shares:   app.NewShares(),
		Chat:     app.NewChat(store, reg, time.Second),
		Presence: app.NewPresence(reg),
		Store:    store,
		Timeout:  time.Second,
	}
}

func TestAuthenticateBroadcastsOnline(t *testing.T) {
	o := newOrchestrator(newFakeStore("alice", "bob"))

	aliceConn := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c1", aliceConn, "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	bobConn := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c2", bobConn, "bob"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// Everyone registered sees the transition, the new arrival included.
	online := aliceConn.eventsOfType(t, "user:online")
	if len(online) != 2 || online[0]["userId"] != "alice" || online[1]["userId"] != "bob" {
		t.Fatalf("alice saw %+v, want user:online for alice then bob", online)
	}
	if own := bobConn.eventsOfType(t, "user:online"); len(own) != 1 || own[0]["userId"] != "bob" {
		t.Fatalf("bob saw %+v, want only his own user:online", own)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	o := newOrchestrator(newFakeStore("alice"))
	err := o.Authenticate(context.Background(), "c1", &fakeConn{}, "ghost")
	if !errors.Is(err, app.ErrUnknownParticipant) {
		t.Fatalf("err = %v, want ErrUnknownParticipant", err)
	}
	if _, ok := o.Registry.Lookup("ghost"); ok {
		t.Fatalf("failed authenticate must not register")
	}
}

func TestReauthenticateSingleTransition(t *testing.T) {
	o := newOrchestrator(newFakeStore("alice", "watcher"))

	watcher := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c0", watcher, "watcher"); err != nil {
		t.Fatalf("Authenticate watcher: %v", err)
	}

	oldConn := &fakeConn{}
	newConn := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c1", oldConn, "alice"); err != nil {
		t.Fatalf("Authenticate old: %v", err)
	}
	if err := o.Authenticate(context.Background(), "c2", newConn, "alice"); err != nil {
		t.Fatalf("Authenticate new: %v", err)
	}

	got, ok := o.Registry.Lookup("alice")
	if !ok || got != newConn {
		t.Fatalf("lookup must resolve only the new connection")
	}

	// The identity stayed online throughout: no offline event, and the
	// stale connection's eventual disconnect must not emit one either.
	o.Disconnect("c1")
	if off := watcher.eventsOfType(t, "user:offline"); len(off) != 0 {
		t.Fatalf("unexpected offline events: %+v", off)
	}
	if _, ok := o.Registry.Lookup("alice"); !ok {
		t.Fatalf("fresh registration lost after stale disconnect")
	}
}

func TestDisconnectCleansEverything(t *testing.T) {
	o := newOrchestrator(newFakeStore("alice", "bob"))

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c1", aliceConn, "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := o.Authenticate(context.Background(), "c2", bobConn, "bob"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	o.Rooms.Join("r1", app.Member{CID: "c1", Peer: "alice", Conn: aliceConn})
	o.Rooms.Join("r1", app.Member{CID: "c2", Peer: "bob", Conn: bobConn})
	o.Shares.Start("alice", "bob")

	o.Disconnect("c1")

	if _, ok := o.Registry.Lookup("alice"); ok {
		t.Fatalf("identity still resolvable after disconnect")
	}
	if _, _, ok := o.Rooms.Leave("c1"); ok {
		t.Fatalf("room membership survived disconnect")
	}
	if o.Shares.Linked("alice", "bob") {
		t.Fatalf("screen-share session survived disconnect")
	}

	if ev := bobConn.eventsOfType(t, "peer-disconnected"); len(ev) != 1 || ev[0]["peerId"] != "alice" {
		t.Fatalf("peer-disconnected = %+v", ev)
	}
	if ev := bobConn.eventsOfType(t, "screenShare:stop"); len(ev) != 1 || ev[0]["from"] != "alice" {
		t.Fatalf("screenShare:stop = %+v", ev)
	}
	if ev := bobConn.eventsOfType(t, "user:offline"); len(ev) != 1 || ev[0]["userId"] != "alice" {
		t.Fatalf("user:offline = %+v", ev)
	}
}

func TestDisconnectEndsEverySessionReferencingIdentity(t *testing.T) {
	o := newOrchestrator(newFakeStore("alice", "h1", "h2"))

	h1Conn := &fakeConn{}
	h2Conn := &fakeConn{}
	if err := o.Authenticate(context.Background(), "c1", &fakeConn{}, "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := o.Authenticate(context.Background(), "c2", h1Conn, "h1"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := o.Authenticate(context.Background(), "c3", h2Conn, "h2"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// alice watches both hosts at once.
	o.Shares.Start("h1", "alice")
	o.Shares.Start("h2", "alice")

	o.Disconnect("c1")

	if o.Shares.Linked("h1", "alice") || o.Shares.Linked("h2", "alice") {
		t.Fatalf("a session referencing alice survived her disconnect")
	}
	if ev := h1Conn.eventsOfType(t, "screenShare:stop"); len(ev) != 1 || ev[0]["from"] != "alice" {
		t.Fatalf("h1 screenShare:stop = %+v", ev)
	}
	if ev := h2Conn.eventsOfType(t, "screenShare:stop"); len(ev) != 1 || ev[0]["from"] != "alice" {
		t.Fatalf("h2 screenShare:stop = %+v", ev)
	}
}

func TestDisconnectBeforeAuthenticate(t *testing.T) {
	o := newOrchestrator(newFakeStore())
	// Must not panic and must leave no state behind.
	o.Disconnect("never-authenticated")
}
