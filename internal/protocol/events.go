// Package protocol defines the closed set of wire events the relay
// speaks and the payload shapes that go with them. All JSON encoding
// and decoding happens at this boundary; the app layer only ever sees
// typed payloads and ready frames.
package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/remotely/relay/internal/core"
	"github.com/remotely/relay/internal/domain"
)

// EventType tags every envelope. Inbound dispatch switches over these
// constants exhaustively; an unknown tag is dropped, never forwarded.
type EventType string

// Client to server.
const (
	EvAuthenticate EventType = "authenticate"
	EvJoinRoom     EventType = "join-room"
	EvOffer        EventType = "offer"
	EvAnswer       EventType = "answer"
	EvICECandidate EventType = "ice-candidate"
	EvStopSharing  EventType = "stop-sharing"
	EvPrivateMsg   EventType = "private_message"
	EvChatHistory  EventType = "get_chat_history"
	EvMarkRead     EventType = "mark_messages_read"
	EvShareStart   EventType = "screenShare:start"
	EvShareOffer   EventType = "screenShare:offer"
	EvShareAccept  EventType = "screenShare:accept"
	EvShareAnswer  EventType = "screenShare:answer"
	EvShareICE     EventType = "screenShare:iceCandidate"
	EvShareStop    EventType = "screenShare:stop"
	EvPing         EventType = "ping"
)

// Server to client.
const (
	EvAuthSuccess      EventType = "auth_success"
	EvAuthError        EventType = "auth_error"
	EvUserOnline       EventType = "user:online"
	EvUserOffline      EventType = "user:offline"
	EvShareStopped     EventType = "share-stopped"
	EvPeerDisconnected EventType = "peer-disconnected"
	EvMessageSent      EventType = "message_sent"
	EvNewMessage       EventType = "new_message"
	EvMessageError     EventType = "message_error"
	EvChatHistoryResp  EventType = "chat_history"
	EvChatHistoryError EventType = "chat_history_error"
	EvMessagesRead     EventType = "messages_read"
	EvMarkReadError    EventType = "mark_messages_error"
	EvMarkReadAck      EventType = "messages_read_ack"
	EvPong             EventType = "pong"
	EvError            EventType = "error"
)

// Envelope carries just the tag; handlers re-decode the full payload.
type Envelope struct {
	Type EventType `json:"type"`
}

// AuthPayload is the authenticate request.
type AuthPayload struct {
	UserID domain.UserID `json:"userId"`
}

// JoinRoomPayload is the join-room request.
type JoinRoomPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

// RoomSignal is the room-scoped negotiation payload, relayed verbatim to
// the rest of the room with the sender identity attached.
type RoomSignal struct {
	Type      EventType                  `json:"type"`
	RoomID    domain.RoomID              `json:"roomId"`
	From      string                     `json:"from,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// ShareSignal is the point-to-point screen-share payload. Inbound it
// carries To; forwarded it carries From instead.
type ShareSignal struct {
	Type      EventType                  `json:"type"`
	To        domain.UserID              `json:"to,omitempty"`
	From      domain.UserID              `json:"from,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// PrivateMessagePayload is the chat send request.
type PrivateMessagePayload struct {
	ReceiverID domain.UserID `json:"receiverId"`
	Message    string        `json:"message"`
}

// ChatHistoryPayload is the history fetch request.
type ChatHistoryPayload struct {
	OtherUserID domain.UserID `json:"otherUserId"`
}

// MarkReadPayload asks to flip the caller's unread messages from
// SenderID to read.
type MarkReadPayload struct {
	SenderID domain.UserID `json:"senderId"`
}

// PresenceEvent is the advisory online/offline broadcast.
type PresenceEvent struct {
	Type   EventType     `json:"type"`
	UserID domain.UserID `json:"userId"`
}

// MessageEvent wraps a persisted chat record for message_sent and
// new_message.
type MessageEvent struct {
	Type EventType `json:"type"`
	domain.ChatMessage
}

// HistoryEvent carries the full ordered history between two identities.
type HistoryEvent struct {
	Type     EventType            `json:"type"`
	Messages []domain.ChatMessage `json:"messages"`
}

// MessagesReadEvent notifies a sender their outbound messages were read.
type MessagesReadEvent struct {
	Type EventType     `json:"type"`
	By   domain.UserID `json:"by"`
}

// PeerDisconnectedEvent tells remaining room members a peer left.
type PeerDisconnectedEvent struct {
	Type   EventType `json:"type"`
	PeerID string    `json:"peerId"`
}

// ErrorEvent is the generic reported failure.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Error   string    `json:"error"`
	Details string    `json:"details,omitempty"`
}

// Encode marshals a payload into a wire frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
