package models

import (
	"encoding/json"
	"time"
)

// EventType identifies websocket events in both directions.
type EventType string

// Server-to-client events.
const (
	EventMessageNew      EventType = "message_new"
	EventTypingUpdate    EventType = "typing_update"
	EventMessagesSeen    EventType = "messages_seen"
	EventUserStatus      EventType = "user_status"
	EventOnlineList      EventType = "online_list"
	EventNotificationNew EventType = "notification_new"
	EventError           EventType = "error"
)

// Client-to-server events.
const (
	EventSendMessage       EventType = "send_message"
	EventTypingStart       EventType = "typing_start"
	EventTypingStop        EventType = "typing_stop"
	EventMarkRead          EventType = "mark_read"
	EventJoinConversation  EventType = "join_conversation"
	EventLeaveConversation EventType = "leave_conversation"
	EventRequestOnlineList EventType = "request_online_list"
	EventRequestUserStatus EventType = "request_user_status"
)

// Event is the outbound websocket envelope.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// InboundEvent is the raw client frame; the payload is decoded per type.
type InboundEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SendMessagePayload carries a send_message request.
type SendMessagePayload struct {
	ConversationID int         `json:"conversation_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	ReplyToID      *int        `json:"reply_to_id,omitempty"`
}

// ConversationPayload carries events scoped to a single conversation.
type ConversationPayload struct {
	ConversationID int `json:"conversation_id"`
}

// UserPayload carries events scoped to a single user.
type UserPayload struct {
	UserID int `json:"user_id"`
}

// TypingPayload is broadcast on typing transitions.
type TypingPayload struct {
	ConversationID int  `json:"conversation_id"`
	UserID         int  `json:"user_id"`
	IsTyping       bool `json:"is_typing"`
}

// MessagesSeenPayload is broadcast when a reader marks messages read.
type MessagesSeenPayload struct {
	ConversationID int   `json:"conversation_id"`
	ReaderID       int   `json:"reader_id"`
	MessageIDs     []int `json:"message_ids"`
}

// UserStatusPayload is broadcast on online/offline transitions.
type UserStatusPayload struct {
	UserID   int       `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// OnlineListPayload answers a request_online_list event.
type OnlineListPayload struct {
	UserIDs []int `json:"user_ids"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
