package chat

import (
	"context"
	"time"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

// GroupBroadcaster fans an event out to every connection subscribed to a
// conversation. excludeUserID of 0 means no exclusion; delivery order per
// connection matches call order.
type GroupBroadcaster interface {
	BroadcastToConversation(conversationID int, event models.Event, excludeUserID int)
}

// Router fans messages, typing transitions and read receipts out to the
// correct set of live connections.
type Router struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	rooms         GroupBroadcaster
	notifier      *Notifier
	typing        *TypingTracker
}

// NewRouter constructs a Router with its own typing tracker.
func NewRouter(conversations repositories.ConversationRepository, users repositories.UserRepository, rooms GroupBroadcaster, notifier *Notifier) *Router {
	r := &Router{
		conversations: conversations,
		users:         users,
		rooms:         rooms,
		notifier:      notifier,
	}
	r.typing = NewTypingTracker(TypingTTL, func(conversationID, userID int) {
		rooms.BroadcastToConversation(conversationID, typingEvent(conversationID, userID, false), userID)
	})
	return r
}

// Typing exposes the tracker for session bookkeeping.
func (r *Router) Typing() *TypingTracker {
	return r.typing
}

// RouteMessage delivers the message to every connection subscribed to the
// conversation and notifies every other participant, online in another view
// or not. A pending typing indicator of the sender is cleared.
func (r *Router) RouteMessage(ctx context.Context, conv models.Conversation, msg models.Message) error {
	r.rooms.BroadcastToConversation(conv.ID, models.Event{
		Type:      models.EventMessageNew,
		Payload:   msg,
		Timestamp: time.Now(),
	}, 0)

	if r.typing.Stop(conv.ID, msg.SenderID) {
		r.rooms.BroadcastToConversation(conv.ID, typingEvent(conv.ID, msg.SenderID, false), msg.SenderID)
	}

	participants, err := r.conversations.Participants(ctx, conv.ID)
	if err != nil {
		return err
	}

	sender, err := r.users.GetUser(ctx, msg.SenderID)
	if err != nil {
		return err
	}

	recipients := make([]int, 0, len(participants))
	for _, id := range participants {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}
	return r.notifier.Notify(ctx, conv, msg, sender.DisplayName, recipients)
}

// RouteTyping records the transition and broadcasts it to the conversation,
// excluding the originating user's connections.
func (r *Router) RouteTyping(conversationID int, userID int, isTyping bool) {
	if isTyping {
		r.typing.Start(conversationID, userID)
	} else if !r.typing.Stop(conversationID, userID) {
		// Ignore a stop with no matching start.
		return
	}
	r.rooms.BroadcastToConversation(conversationID, typingEvent(conversationID, userID, isTyping), userID)
}

// RouteReadReceipt broadcasts newly read message ids to the conversation,
// excluding the reader. An empty id list is not broadcast.
func (r *Router) RouteReadReceipt(conversationID int, readerID int, messageIDs []int) {
	if len(messageIDs) == 0 {
		return
	}
	r.rooms.BroadcastToConversation(conversationID, models.Event{
		Type: models.EventMessagesSeen,
		Payload: models.MessagesSeenPayload{
			ConversationID: conversationID,
			ReaderID:       readerID,
			MessageIDs:     messageIDs,
		},
		Timestamp: time.Now(),
	}, readerID)
}

func typingEvent(conversationID int, userID int, isTyping bool) models.Event {
	return models.Event{
		Type: models.EventTypingUpdate,
		Payload: models.TypingPayload{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       isTyping,
		},
		Timestamp: time.Now(),
	}
}
