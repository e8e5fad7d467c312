package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/telemetry"
)

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, users: users, audit: audit}
}

// CreateConversation starts a direct conversation or creates a group.
// Direct creation is idempotent: an existing conversation for the pair is
// returned instead of a duplicate.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Kind           string `json:"kind" binding:"required"`
		ParticipantIDs []int  `json:"participant_ids"`
		Name           string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Kind {
	case models.ConversationDirect:
		friendID, ok := directPeer(userID, req.ParticipantIDs)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direct conversation needs exactly one other participant"})
			return
		}
		conv, err := h.conversations.CreateDirect(c.Request.Context(), userID, friendID)
		if err != nil {
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
			return
		}
		c.JSON(http.StatusOK, conv)

	case models.ConversationGroup:
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group conversation needs a name"})
			return
		}
		conv, err := h.conversations.CreateGroup(c.Request.Context(), userID, req.Name, req.ParticipantIDs)
		if err != nil {
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
			return
		}
		h.emitAudit(c, "INFO", "Group created")
		c.JSON(http.StatusCreated, conv)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown conversation kind"})
	}
}

// ListConversations returns the caller's conversations with participant info.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.conversations.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	idSet := map[int]struct{}{}
	ids := make([]int, 0)
	for _, s := range summaries {
		for _, id := range s.ParticipantIDs {
			if _, ok := idSet[id]; !ok {
				idSet[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	users, err := h.users.BulkUsers(c.Request.Context(), ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	byID := map[int]models.User{}
	for _, u := range users {
		byID[u.ID] = u
	}

	type conversationResponse struct {
		models.ConversationSummary
		Participants []models.User `json:"participants"`
	}

	resp := make([]conversationResponse, 0, len(summaries))
	for _, s := range summaries {
		participants := make([]models.User, 0, len(s.ParticipantIDs))
		for _, id := range s.ParticipantIDs {
			if u, ok := byID[id]; ok {
				participants = append(participants, u)
			}
		}
		resp = append(resp, conversationResponse{ConversationSummary: s, Participants: participants})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": resp})
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

// directPeer extracts the single other participant of a direct conversation
// request, tolerating lists that include the caller.
func directPeer(userID int, participantIDs []int) (int, bool) {
	peer := 0
	for _, id := range participantIDs {
		if id == userID {
			continue
		}
		if peer != 0 && peer != id {
			return 0, false
		}
		peer = id
	}
	if peer == 0 {
		return 0, false
	}
	return peer, true
}
