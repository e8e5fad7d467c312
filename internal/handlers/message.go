package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/chat"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/telemetry"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	router        *chat.Router
	reconciler    *chat.Reconciler
	audit         *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(conversations repositories.ConversationRepository, messages repositories.MessageRepository,
	users repositories.UserRepository, router *chat.Router, reconciler *chat.Reconciler, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		router:        router,
		reconciler:    reconciler,
		audit:         audit,
	}
}

// GetMessages returns a page of messages with derived delivery statuses and
// sender names, oldest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	conversationID, ok := h.authorizedConversation(c)
	if !ok {
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		before = &parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.messages.ListSince(c.Request.Context(), conversationID, before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	if err := h.reconciler.Annotate(c.Request.Context(), conversationID, msgs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive statuses"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	users, err := h.users.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	senderNames := map[int]string{}
	for _, u := range users {
		senderNames[u.ID] = u.DisplayName
	}

	type messageResponse struct {
		models.Message
		SenderName string `json:"sender_name,omitempty"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderName: senderNames[m.SenderID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostMessage stores a message and fans it out.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.conversations.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}

	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	var req struct {
		Content   string             `json:"content" binding:"required"`
		Type      models.MessageType `json:"type"`
		ReplyToID *int               `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	if req.ReplyToID != nil {
		parent, err := h.messages.GetMessage(c.Request.Context(), *req.ReplyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reply target"})
			return
		}
		if parent.ConversationID != conversationID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not in conversation"})
			return
		}
	}

	msg, err := h.messages.Append(c.Request.Context(), conversationID, userID, req.Content, req.Type, req.ReplyToID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	if err := h.router.RouteMessage(c.Request.Context(), conv, msg); err != nil {
		// The message is stored and broadcast; notification delivery
		// failures are reported to the sender only.
		h.emitAudit(c, "ERROR", "notification delivery failed")
	}
	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// MarkRead acknowledges every unread message in the conversation for the
// caller and broadcasts the newly read ids.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := h.authorizedConversation(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	ids, err := h.reconciler.MarkRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	h.router.RouteReadReceipt(conversationID, userID, ids)
	if ids == nil {
		ids = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": ids})
}

func (h *MessageHandler) authorizedConversation(c *gin.Context) (int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return 0, false
	}
	return conversationID, true
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
