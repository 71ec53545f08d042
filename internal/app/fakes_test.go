package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
)

// fakeConn records every frame it is asked to deliver.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

// events decodes every recorded frame into a generic map.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("decode frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) eventsOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

// fakeStore is an in-memory persistence collaborator.
type fakeStore struct {
	mu         sync.Mutex
	users      map[domain.UserID]domain.User
	msgs       []domain.ChatMessage
	failCreate bool
	seq        int
}

func newFakeStore(ids ...domain.UserID) *fakeStore {
	s := &fakeStore{users: make(map[domain.UserID]domain.User)}
	for _, id := range ids {
		s.users[id] = domain.User{ID: id, Username: string(id)}
	}
	return s
}

func (s *fakeStore) FindUser(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrUserNotFound)
	}
	return u, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, sender, receiver domain.UserID, body string) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return domain.ChatMessage{}, errors.New("disk full")
	}
	s.seq++
	msg := domain.ChatMessage{
		ID:         fmt.Sprintf("m-%d", s.seq),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Status:     domain.StatusSent,
		CreatedAt:  time.Unix(int64(s.seq), 0).UTC(),
	}
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *fakeStore) ListMessages(_ context.Context, a, b domain.UserID) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkRead(_ context.Context, sender, receiver domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.SenderID == sender && m.ReceiverID == receiver && !m.Read {
			m.Read = true
			m.Status = domain.StatusRead
		}
	}
	return nil
}
