package models

import "time"

// Conversation kinds.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation represents a direct or group conversation.
type Conversation struct {
	ID            int       `db:"id" json:"id"`
	Kind          string    `db:"kind" json:"kind"`
	Name          string    `db:"name" json:"name,omitempty"`
	Picture       string    `db:"picture" json:"picture,omitempty"`
	LastMessageID *int      `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Participant links a user to a conversation.
type Participant struct {
	ConversationID int  `db:"conversation_id" json:"conversation_id"`
	UserID         int  `db:"user_id" json:"user_id"`
	Admin          bool `db:"is_admin" json:"is_admin"`
}

// ConversationSummary is the API-friendly view of a conversation for a user.
type ConversationSummary struct {
	Conversation
	ParticipantIDs []int    `json:"participant_ids"`
	LastMessage    *Message `json:"last_message,omitempty"`
}
