package domain

import "time"

// MessageStatus is the delivery status of a persisted chat message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// ChatMessage is the persisted chat record. The store owns it; the relay
// only decides when to attempt live delivery.
type ChatMessage struct {
	ID         string        `json:"id"`
	SenderID   UserID        `json:"senderId"`
	ReceiverID UserID        `json:"receiverId"`
	Body       string        `json:"message"`
	Status     MessageStatus `json:"status"`
	Read       bool          `json:"read"`
	CreatedAt  time.Time     `json:"createdAt"`
}
