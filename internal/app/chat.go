package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

// ErrUnknownParticipant means a chat partner is not known to the user
// lookup collaborator. Nothing is persisted in that case.
var ErrUnknownParticipant = errors.New("unknown participant")

// MessageStore is the persistence collaborator. It owns the chat records
// and the user directory; the relay only decides when to attempt live
// delivery. FindUser reports absence with domain.ErrUserNotFound.
type MessageStore interface {
	CreateMessage(ctx context.Context, sender, receiver domain.UserID, body string) (domain.ChatMessage, error)
	ListMessages(ctx context.Context, a, b domain.UserID) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, sender, receiver domain.UserID) error
	FindUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Chat coordinates message delivery: persist first, then deliver live if
// the receiver is registered, else leave the record for the receiver's
// next history fetch. Store calls are bounded by the configured timeout
// so a slow collaborator surfaces as an error, never a hang.
type Chat struct {
	store   MessageStore
	reg     *Registry
	timeout time.Duration
}

func NewChat(store MessageStore, reg *Registry, timeout time.Duration) *Chat {
	return &Chat{store: store, reg: reg, timeout: timeout}
}

func (c *Chat) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Send validates both participants, persists the message, then attempts
// immediate delivery. The persisted record is returned for the sender
// acknowledgment regardless of whether the receiver was online.
func (c *Chat) Send(ctx context.Context, sender, receiver domain.UserID, body string) (domain.ChatMessage, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.verify(ctx, sender, receiver); err != nil {
		return domain.ChatMessage{}, err
	}

	msg, err := c.store.CreateMessage(ctx, sender, receiver, body)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("persist message: %w", err)
	}

	if conn, ok := c.reg.Lookup(receiver); ok {
		frame, err := protocol.Encode(protocol.MessageEvent{Type: protocol.EvNewMessage, ChatMessage: msg})
		if err != nil {
			log.Error().Err(err).Str("module", "app.chat").Msg("encode new_message")
		} else if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.chat").Str("receiver", string(receiver)).Msg("live delivery dropped")
		}
	}
	log.Info().Str("module", "app.chat").Str("id", msg.ID).Str("sender", string(sender)).Str("receiver", string(receiver)).Msg("message accepted")
	return msg, nil
}

// MarkRead flips the reader's unread messages from sender to read and,
// if the sender is online, notifies them who read their messages.
func (c *Chat) MarkRead(ctx context.Context, sender, reader domain.UserID) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.verify(ctx, sender, reader); err != nil {
		return err
	}
	if err := c.store.MarkRead(ctx, sender, reader); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if conn, ok := c.reg.Lookup(sender); ok {
		frame, err := protocol.Encode(protocol.MessagesReadEvent{Type: protocol.EvMessagesRead, By: reader})
		if err != nil {
			log.Error().Err(err).Str("module", "app.chat").Msg("encode messages_read")
		} else {
			_ = conn.TrySend(frame)
		}
	}
	return nil
}

// History returns the full conversation between the two identities in
// creation order. The order is the same whichever way the pair is given.
func (c *Chat) History(ctx context.Context, a, b domain.UserID) ([]domain.ChatMessage, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.verify(ctx, a, b); err != nil {
		return nil, err
	}
	msgs, err := c.store.ListMessages(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (c *Chat) verify(ctx context.Context, a, b domain.UserID) error {
	for _, uid := range []domain.UserID{a, b} {
		if _, err := c.store.FindUser(ctx, uid); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownParticipant, uid)
			}
			return fmt.Errorf("verify user %s: %w", uid, err)
		}
	}
	return nil
}
