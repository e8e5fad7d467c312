package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/chat"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/observability"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

const maxContentRunes = 4096

// Session binds one live connection to the core services and dispatches its
// inbound events. All mutation happens through the router, reconciler and
// registry; the session itself holds no state beyond the client.
type Session struct {
	ctx           context.Context
	client        *Client
	hub           *Hub
	registry      *presence.Registry
	router        *chat.Router
	reconciler    *chat.Reconciler
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	onClose       func(reason string)
	closeReason   string
}

func (s *Session) handleFrame(payload []byte) {
	var event models.InboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.sendError("invalid_payload", "malformed event")
		return
	}

	switch event.Type {
	case models.EventSendMessage:
		s.handleSendMessage(event.Payload)
	case models.EventTypingStart:
		s.handleTyping(event.Payload, true)
	case models.EventTypingStop:
		s.handleTyping(event.Payload, false)
	case models.EventMarkRead:
		s.handleMarkRead(event.Payload)
	case models.EventJoinConversation:
		s.handleJoin(event.Payload)
	case models.EventLeaveConversation:
		s.handleLeave(event.Payload)
	case models.EventRequestOnlineList:
		s.handleOnlineList()
	case models.EventRequestUserStatus:
		s.handleUserStatus(event.Payload)
	default:
		s.sendError("unknown_event", string(event.Type))
	}
	observability.IncWSEvent("session", string(event.Type))
}

func (s *Session) handleSendMessage(raw json.RawMessage) {
	var req models.SendMessagePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed send_message payload")
		return
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if !req.Type.Valid() {
		s.sendError("invalid_payload", "unknown message type")
		return
	}
	if req.Content == "" || len([]rune(req.Content)) > maxContentRunes {
		s.sendError("invalid_payload", "content empty or too large")
		return
	}

	conv, err := s.conversations.GetConversation(s.ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			s.sendError("not_found", "conversation not found")
			return
		}
		s.sendError("internal", "failed to load conversation")
		return
	}

	if !s.requireParticipant(conv.ID) {
		return
	}

	if req.ReplyToID != nil {
		parent, err := s.messages.GetMessage(s.ctx, *req.ReplyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				s.sendError("invalid_payload", "reply target not found")
				return
			}
			s.sendError("internal", "failed to load reply target")
			return
		}
		if parent.ConversationID != conv.ID {
			s.sendError("invalid_payload", "reply target not in conversation")
			return
		}
	}

	msg, err := s.messages.Append(s.ctx, conv.ID, s.client.UserID(), req.Content, req.Type, req.ReplyToID)
	if err != nil {
		s.sendError("internal", "failed to store message")
		return
	}

	if err := s.router.RouteMessage(s.ctx, conv, msg); err != nil {
		log.Printf("message %d routed with errors: %v", msg.ID, err)
		s.sendError("internal", "message stored but notification delivery failed")
	}
}

func (s *Session) handleTyping(raw json.RawMessage, isTyping bool) {
	var req models.ConversationPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed typing payload")
		return
	}
	if !s.requireParticipant(req.ConversationID) {
		return
	}
	s.router.RouteTyping(req.ConversationID, s.client.UserID(), isTyping)
}

func (s *Session) handleMarkRead(raw json.RawMessage) {
	var req models.ConversationPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed mark_read payload")
		return
	}
	if !s.requireParticipant(req.ConversationID) {
		return
	}

	ids, err := s.reconciler.MarkRead(s.ctx, req.ConversationID, s.client.UserID())
	if err != nil {
		s.sendError("internal", "failed to mark messages read")
		return
	}
	s.router.RouteReadReceipt(req.ConversationID, s.client.UserID(), ids)
}

func (s *Session) handleJoin(raw json.RawMessage) {
	var req models.ConversationPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed join payload")
		return
	}
	if !s.requireParticipant(req.ConversationID) {
		return
	}
	s.hub.Join(req.ConversationID, s.client)
}

func (s *Session) handleLeave(raw json.RawMessage) {
	var req models.ConversationPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed leave payload")
		return
	}
	s.hub.Leave(req.ConversationID, s.client)
}

func (s *Session) handleOnlineList() {
	s.client.Send(models.Event{
		Type:      models.EventOnlineList,
		Payload:   models.OnlineListPayload{UserIDs: s.registry.ListOnline()},
		Timestamp: time.Now(),
	})
}

func (s *Session) handleUserStatus(raw json.RawMessage) {
	var req models.UserPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError("invalid_payload", "malformed user status payload")
		return
	}

	user, err := s.users.GetUser(s.ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.sendError("not_found", "user not found")
			return
		}
		s.sendError("internal", "failed to load user")
		return
	}

	s.client.Send(models.Event{
		Type: models.EventUserStatus,
		Payload: models.UserStatusPayload{
			UserID:   user.ID,
			IsOnline: s.registry.IsOnline(user.ID),
			LastSeen: user.LastSeen,
		},
		Timestamp: time.Now(),
	})
}

// requireParticipant rejects the operation with a forbidden error when the
// session's user is not a member of the conversation. Failures are reported
// to this connection only; no side effects leak to other participants.
func (s *Session) requireParticipant(conversationID int) bool {
	member, err := s.conversations.IsParticipant(s.ctx, conversationID, s.client.UserID())
	if err != nil {
		s.sendError("internal", "failed to verify membership")
		return false
	}
	if !member {
		s.sendError("forbidden", "not a conversation participant")
		return false
	}
	return true
}

func (s *Session) sendError(code string, message string) {
	s.client.Send(models.Event{
		Type:      models.EventError,
		Payload:   models.ErrorPayload{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

func (s *Session) recordError(err error) {
	s.closeReason = err.Error()
	observability.IncWSEvent("session", "ws_error")
}

func (s *Session) close() {
	if s.onClose != nil {
		s.onClose(s.closeReason)
	}
}
