package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

// UserHandler serves user profiles and live status.
type UserHandler struct {
	users    repositories.UserRepository
	registry *presence.Registry
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository, registry *presence.Registry) *UserHandler {
	return &UserHandler{users: users, registry: registry}
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetInt("userID")
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	user.IsOnline = h.registry.IsOnline(user.ID)
	c.JSON(http.StatusOK, user)
}

// GetUser returns a user profile. The registry overrides the stored online
// flag: it is the source of truth while the process runs.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}
	user.IsOnline = h.registry.IsOnline(user.ID)
	c.JSON(http.StatusOK, user)
}

// ListOnline returns the ids of every currently online user.
func (h *UserHandler) ListOnline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_ids": h.registry.ListOnline()})
}
