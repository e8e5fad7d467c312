package models

import "time"

// NotificationMessage is the only notification type the service emits today.
const NotificationMessage = "message"

// Notification is a persisted per-recipient notification record. Exactly one
// record exists per (message, recipient); delivery fans out to every live
// connection of that recipient.
type Notification struct {
	ID             int       `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Type           string    `db:"type" json:"type"`
	Title          string    `db:"title" json:"title"`
	Body           string    `db:"body" json:"body"`
	Read           bool      `db:"is_read" json:"read"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	MessageID      int       `db:"message_id" json:"message_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	SenderName     string    `db:"sender_name" json:"sender_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
