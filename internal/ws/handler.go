package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/chat"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/identity"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/observability"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

const maxFrameBytes = 16 * 1024

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the single websocket endpoint. Each accepted connection
// becomes one presence handle and is subscribed to the rooms of every
// conversation the user participates in.
type Handler struct {
	hub           *Hub
	registry      *presence.Registry
	router        *chat.Router
	reconciler    *chat.Reconciler
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	verifier      identity.Verifier
}

// NewHandler constructs the websocket Handler.
func NewHandler(hub *Hub, registry *presence.Registry, router *chat.Router, reconciler *chat.Reconciler,
	conversations repositories.ConversationRepository, messages repositories.MessageRepository,
	users repositories.UserRepository, verifier identity.Verifier) *Handler {
	return &Handler{
		hub:           hub,
		registry:      registry,
		router:        router,
		reconciler:    reconciler,
		conversations: conversations,
		messages:      messages,
		users:         users,
		verifier:      verifier,
	}
}

// Handle authenticates, upgrades and runs the session until the connection
// closes. An invalid credential rejects the attempt before any registry
// mutation.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("telegramm-clone/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	id, err := h.verifier.Verify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conversationIDs, err := h.conversations.ConversationIDsForUser(ctx, id.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      id.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)

	h.registry.Register(ctx, id.UserID, client)
	for _, conversationID := range conversationIDs {
		h.hub.Join(conversationID, client)
	}

	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", "")
	log.Printf("websocket connected user=%d conn=%s", id.UserID, info.ConnID)

	session := &Session{
		ctx:           ctx,
		client:        client,
		hub:           h.hub,
		registry:      h.registry,
		router:        h.router,
		reconciler:    h.reconciler,
		conversations: h.conversations,
		messages:      h.messages,
		users:         h.users,
	}
	session.onClose = func(reason string) {
		h.hub.LeaveAll(client)
		h.registry.Unregister(ctx, id.UserID, client)
		client.Close()
		observability.DecWSActive("session")
		observability.IncWSEvent("session", "ws_disconnect")
		h.publishLifecycle(ctx, info, "ws_disconnect", reason)
		log.Printf("websocket disconnected user=%d conn=%s", id.UserID, info.ConnID)
	}

	go client.WritePump()
	// The read pump blocks until disconnect, keeping the request context
	// alive for the whole session.
	client.ReadPump(session)
}

func (h *Handler) publishLifecycle(ctx context.Context, info ConnInfo, event string, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
