package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remotely/relay/internal/app"
)

func newChat(store *fakeStore) (*app.Chat, *app.Registry) {
	reg := app.NewRegistry()
	return app.NewChat(store, reg, time.Second), reg
}

func TestChatSendDeliversToOnlineReceiver(t *testing.T) {
	store := newFakeStore("alice", "bob")
	chat, reg := newChat(store)

	bobConn := &fakeConn{}
	reg.Register("bob", "c-bob", bobConn)

	msg, err := chat.Send(context.Background(), "alice", "bob", "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == "" || msg.Body != "hi" {
		t.Fatalf("unexpected record: %+v", msg)
	}
	if len(store.msgs) != 1 {
		t.Fatalf("persisted %d messages, want exactly 1", len(store.msgs))
	}

	delivered := bobConn.eventsOfType(t, "new_message")
	if len(delivered) != 1 {
		t.Fatalf("receiver got %d new_message events, want 1", len(delivered))
	}
	if delivered[0]["id"] != msg.ID || delivered[0]["message"] != "hi" {
		t.Fatalf("delivered record does not match persisted one: %+v", delivered[0])
	}
}

func TestChatSendOfflineReceiverFallsBackToHistory(t *testing.T) {
	store := newFakeStore("alice", "bob")
	chat, _ := newChat(store)

	if _, err := chat.Send(context.Background(), "alice", "bob", "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := chat.Send(context.Background(), "alice", "bob", "second"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := chat.History(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Fatalf("history out of creation order: %+v", msgs)
	}
}

func TestChatHistorySymmetric(t *testing.T) {
	store := newFakeStore("alice", "bob")
	chat, _ := newChat(store)

	_, _ = chat.Send(context.Background(), "alice", "bob", "one")
	_, _ = chat.Send(context.Background(), "bob", "alice", "two")

	ab, err := chat.History(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("History(a,b): %v", err)
	}
	ba, err := chat.History(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("History(b,a): %v", err)
	}
	if len(ab) != len(ba) {
		t.Fatalf("asymmetric history: %d vs %d", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i].ID != ba[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, ab[i].ID, ba[i].ID)
		}
	}
}

func TestChatSendUnknownParticipant(t *testing.T) {
	store := newFakeStore("alice")
	chat, _ := newChat(store)

	_, err := chat.Send(context.Background(), "alice", "ghost", "hi")
	if !errors.Is(err, app.ErrUnknownParticipant) {
		t.Fatalf("err = %v, want ErrUnknownParticipant", err)
	}
	if len(store.msgs) != 0 {
		t.Fatalf("message persisted despite unknown participant")
	}
}

func TestChatSendPersistFailure(t *testing.T) {
	store := newFakeStore("alice", "bob")
	store.failCreate = true
	chat, reg := newChat(store)

	bobConn := &fakeConn{}
	reg.Register("bob", "c-bob", bobConn)

	if _, err := chat.Send(context.Background(), "alice", "bob", "hi"); err == nil {
		t.Fatalf("expected persistence failure")
	}
	if len(bobConn.events(t)) != 0 {
		t.Fatalf("nothing must be delivered when persistence fails")
	}
}

func TestChatMarkReadNotifiesOnlineSender(t *testing.T) {
	store := newFakeStore("alice", "bob")
	chat, reg := newChat(store)

	_, _ = chat.Send(context.Background(), "alice", "bob", "hi")

	aliceConn := &fakeConn{}
	reg.Register("alice", "c-alice", aliceConn)

	if err := chat.MarkRead(context.Background(), "alice", "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !store.msgs[0].Read {
		t.Fatalf("message not flipped to read")
	}

	notices := aliceConn.eventsOfType(t, "messages_read")
	if len(notices) != 1 || notices[0]["by"] != "bob" {
		t.Fatalf("sender notice = %+v, want one messages_read by bob", notices)
	}
}
