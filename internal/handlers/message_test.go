package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/chat"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/mocks"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToConversation(int, models.Event, int) {}

type noHandles struct{}

func (noHandles) HandlesFor(int) []presence.Conn { return nil }

type messageFixture struct {
	handler          *MessageHandler
	conversationRepo *mocks.ConversationRepositoryMock
	messageRepo      *mocks.MessageRepositoryMock
	userRepo         *mocks.UserRepositoryMock
	notificationRepo *mocks.NotificationRepositoryMock
}

func newMessageFixture() *messageFixture {
	conversationRepo := new(mocks.ConversationRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	notificationRepo := new(mocks.NotificationRepositoryMock)

	notifier := chat.NewNotifier(notificationRepo, noHandles{})
	router := chat.NewRouter(conversationRepo, userRepo, noopBroadcaster{}, notifier)
	reconciler := chat.NewReconciler(conversationRepo, messageRepo)

	return &messageFixture{
		handler:          NewMessageHandler(conversationRepo, messageRepo, userRepo, router, reconciler, nil),
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
	}
}

func TestPostMessageStoresAndNotifies(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	conv := models.Conversation{ID: 5, Kind: models.ConversationDirect}
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hi", Type: models.MessageText}

	f.conversationRepo.On("GetConversation", mock.Anything, 5).Return(conv, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messageRepo.On("Append", mock.Anything, 5, 1, "hi", models.MessageText, (*int)(nil)).Return(stored, nil).Once()
	f.conversationRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	f.userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "Alice"}, nil).Once()
	f.notificationRepo.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == 2 && n.MessageID == 9
	})).Return(models.Notification{ID: 1}, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "hi"})

	require.Equal(t, http.StatusCreated, w.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, 9, msg.ID)
	f.notificationRepo.AssertExpectations(t)
}

func TestPostMessageUnknownConversation(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 99).
		Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	w := performRequest(router, http.MethodPost, "/conversations/99/messages", gin.H{"content": "hi"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessageForbiddenForNonParticipant(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(3)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.ConversationDirect}, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 3).Return(false, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "hi"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageRejectsEmptyContent(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.ConversationDirect}, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageRejectsUnknownType(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.ConversationDirect}, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "x", "type": "hologram"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageWithValidReply(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	conv := models.Conversation{ID: 5, Kind: models.ConversationDirect}
	replyTo := 77
	stored := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "agreed", Type: models.MessageText, ReplyToID: &replyTo}

	f.conversationRepo.On("GetConversation", mock.Anything, 5).Return(conv, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messageRepo.On("GetMessage", mock.Anything, 77).
		Return(models.Message{ID: 77, ConversationID: 5, SenderID: 2}, nil).Once()
	f.messageRepo.On("Append", mock.Anything, 5, 1, "agreed", models.MessageText, &replyTo).Return(stored, nil).Once()
	f.conversationRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	f.userRepo.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "Alice"}, nil).Once()
	f.notificationRepo.On("Create", mock.Anything, mock.Anything).Return(models.Notification{ID: 1}, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "agreed", "reply_to_id": 77})

	require.Equal(t, http.StatusCreated, w.Code)
	f.messageRepo.AssertExpectations(t)
}

func TestPostMessageRejectsCrossConversationReply(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.ConversationDirect}, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messageRepo.On("GetMessage", mock.Anything, 77).
		Return(models.Message{ID: 77, ConversationID: 6}, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "hi", "reply_to_id": 77})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageRejectsMissingReplyTarget(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.POST("/conversations/:conversation_id/messages", f.handler.PostMessage)

	f.conversationRepo.On("GetConversation", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.ConversationDirect}, nil).Once()
	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messageRepo.On("GetMessage", mock.Anything, 404).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/messages", gin.H{"content": "hi", "reply_to_id": 404})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessagesAnnotatesAndEnriches(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.GET("/conversations/:conversation_id/messages", f.handler.GetMessages)

	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.messageRepo.On("ListSince", mock.Anything, 5, (*time.Time)(nil), 50).Return([]models.Message{
		{ID: 9, ConversationID: 5, SenderID: 2, Content: "hi", ReadBy: []int{2}},
	}, nil).Once()
	f.conversationRepo.On("Participants", mock.Anything, 5).Return([]int{1, 2}, nil).Once()
	f.userRepo.On("BulkUsers", mock.Anything, []int{2}).Return([]models.User{{ID: 2, DisplayName: "Bob"}}, nil).Once()

	w := performRequest(router, http.MethodGet, "/conversations/5/messages", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []struct {
			ID         int    `json:"id"`
			Status     string `json:"status"`
			SenderName string `json:"sender_name"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, string(models.StatusSent), resp.Messages[0].Status)
	assert.Equal(t, "Bob", resp.Messages[0].SenderName)
}

func TestGetMessagesRejectsBadBeforeTimestamp(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(1)
	router.GET("/conversations/:conversation_id/messages", f.handler.GetMessages)

	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	w := performRequest(router, http.MethodGet, "/conversations/5/messages?before=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadReturnsIDs(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(2)
	router.POST("/conversations/:conversation_id/read", f.handler.MarkRead)

	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 2).Return(true, nil).Once()
	f.messageRepo.On("MarkRead", mock.Anything, 5, 2).Return([]int{11, 12}, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/read", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		MessageIDs []int `json:"message_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{11, 12}, resp.MessageIDs)
}

func TestMarkReadWithNothingUnread(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(2)
	router.POST("/conversations/:conversation_id/read", f.handler.MarkRead)

	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 2).Return(true, nil).Once()
	f.messageRepo.On("MarkRead", mock.Anything, 5, 2).Return([]int(nil), nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/read", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message_ids": []}`, w.Body.String())
}

func TestMarkReadForbiddenForNonParticipant(t *testing.T) {
	f := newMessageFixture()
	router := setupRouter(7)
	router.POST("/conversations/:conversation_id/read", f.handler.MarkRead)

	f.conversationRepo.On("IsParticipant", mock.Anything, 5, 7).Return(false, nil).Once()

	w := performRequest(router, http.MethodPost, "/conversations/5/read", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.messageRepo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}
