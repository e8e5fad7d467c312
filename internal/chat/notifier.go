package chat

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/observability"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

const maxPreviewRunes = 80

// HandleSource resolves a user id to their live connections.
type HandleSource interface {
	HandlesFor(userID int) []presence.Conn
}

// Notifier persists one notification record per (message, recipient) and
// delivers it to every live connection of that recipient.
type Notifier struct {
	notifications repositories.NotificationRepository
	handles       HandleSource
}

// NewNotifier constructs a Notifier.
func NewNotifier(notifications repositories.NotificationRepository, handles HandleSource) *Notifier {
	return &Notifier{notifications: notifications, handles: handles}
}

// Notify composes and stores a notification for each recipient, then fans it
// out to the recipient's live handles. The sender never receives one.
func (n *Notifier) Notify(ctx context.Context, conv models.Conversation, msg models.Message, senderName string, recipientIDs []int) error {
	title := senderName
	if conv.Kind == models.ConversationGroup {
		title = conv.Name
	}
	body := previewBody(msg, conv.Kind, senderName)

	var firstErr error
	for _, recipientID := range recipientIDs {
		if recipientID == msg.SenderID {
			continue
		}

		record, err := n.notifications.Create(ctx, models.Notification{
			UserID:         recipientID,
			Type:           models.NotificationMessage,
			Title:          title,
			Body:           body,
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			SenderID:       msg.SenderID,
			SenderName:     senderName,
		})
		if err != nil {
			log.Printf("failed to store notification for user %d: %v", recipientID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		observability.IncNotification()

		event := models.Event{
			Type:      models.EventNotificationNew,
			Payload:   record,
			Timestamp: time.Now(),
		}
		for _, conn := range n.handles.HandlesFor(recipientID) {
			if !conn.Send(event) {
				log.Printf("dropping notification event for slow connection of user %d", recipientID)
			}
		}
	}
	return firstErr
}

func previewBody(msg models.Message, kind string, senderName string) string {
	var body string
	switch msg.Type {
	case models.MessageImage:
		body = "\U0001F4F7 Photo"
	case models.MessageVideo:
		body = "\U0001F3A5 Video"
	case models.MessageFile:
		body = "\U0001F4CE File"
	case models.MessageVoice:
		body = "\U0001F3A4 Voice message"
	default:
		body = truncate(msg.Content, maxPreviewRunes)
	}
	if kind == models.ConversationGroup {
		body = fmt.Sprintf("%s: %s", senderName, body)
	}
	return body
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
