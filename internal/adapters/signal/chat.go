package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/remotely/relay/internal/domain"
	"github.com/remotely/relay/internal/protocol"
)

func (ctl *Controller) handlePrivateMessage(ctx context.Context, cl *client, data []byte) {
	if cl.user == "" {
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvMessageError, Error: "Failed to send message", Details: "not authenticated"})
		return
	}
	var p protocol.PrivateMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" || p.Message == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad private_message payload")
		return
	}

	msg, err := ctl.Orch.Chat.Send(ctx, cl.user, p.ReceiverID, p.Message)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sender", string(cl.user)).Msg("private message failed")
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvMessageError, Error: "Failed to send message", Details: err.Error()})
		return
	}
	ctl.sendJSON(cl, protocol.MessageEvent{Type: protocol.EvMessageSent, ChatMessage: msg})
}

func (ctl *Controller) handleChatHistory(ctx context.Context, cl *client, data []byte) {
	if cl.user == "" {
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvChatHistoryError, Error: "Failed to fetch chat history", Details: "not authenticated"})
		return
	}
	var p protocol.ChatHistoryPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OtherUserID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad get_chat_history payload")
		return
	}

	msgs, err := ctl.Orch.Chat.History(ctx, cl.user, p.OtherUserID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(cl.user)).Msg("chat history failed")
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvChatHistoryError, Error: "Failed to fetch chat history", Details: err.Error()})
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	ctl.sendJSON(cl, protocol.HistoryEvent{Type: protocol.EvChatHistoryResp, Messages: msgs})
}

func (ctl *Controller) handleMarkRead(ctx context.Context, cl *client, data []byte) {
	if cl.user == "" {
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvMarkReadError, Error: "Failed to mark messages as read", Details: "not authenticated"})
		return
	}
	var p protocol.MarkReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SenderID == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad mark_messages_read payload")
		return
	}

	if err := ctl.Orch.Chat.MarkRead(ctx, p.SenderID, cl.user); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(cl.user)).Msg("mark read failed")
		ctl.sendJSON(cl, protocol.ErrorEvent{Type: protocol.EvMarkReadError, Error: "Failed to mark messages as read", Details: err.Error()})
		return
	}
	ctl.sendJSON(cl, protocol.Envelope{Type: protocol.EvMarkReadAck})
}
