package models

import "time"

// MessageType tags message content. It is set explicitly at send time and
// never inferred from the payload.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
	MessageVoice MessageType = "voice"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageFile, MessageVoice:
		return true
	}
	return false
}

// DeliveryStatus is derived from the read-by set at read time. It is never
// stored with the message.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusSeen      DeliveryStatus = "seen"
)

// Message represents a chat message. ReadBy holds the ids of users who have
// acknowledged the message; it contains the sender from creation and only
// ever grows.
type Message struct {
	ID             int            `db:"id" json:"id"`
	ConversationID int            `db:"conversation_id" json:"conversation_id"`
	SenderID       int            `db:"sender_id" json:"sender_id"`
	Content        string         `db:"content" json:"content"`
	Type           MessageType    `db:"type" json:"type"`
	ReplyToID      *int           `db:"reply_to_id" json:"reply_to_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	ReadBy         []int          `json:"read_by"`
	Status         DeliveryStatus `json:"status,omitempty"`
}
