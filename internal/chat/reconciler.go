package chat

import (
	"context"
	"errors"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

// StatusOf derives the delivery status of a message from the size of its
// read-by set and the conversation's participant count. Recomputed on every
// read, never stored.
func StatusOf(readCount int, participantCount int) models.DeliveryStatus {
	switch {
	case readCount <= 1:
		return models.StatusSent
	case readCount < participantCount:
		return models.StatusDelivered
	default:
		return models.StatusSeen
	}
}

// Reconciler mutates and queries read-by sets.
type Reconciler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
}

// NewReconciler constructs a Reconciler.
func NewReconciler(conversations repositories.ConversationRepository, messages repositories.MessageRepository) *Reconciler {
	return &Reconciler{conversations: conversations, messages: messages}
}

// MarkRead acknowledges every message in the conversation the reader has not
// yet read, excluding their own. Returns the newly marked ids in ascending
// order. A missing conversation or message is a silent no-op: a reader may
// race a deletion.
func (r *Reconciler) MarkRead(ctx context.Context, conversationID int, readerID int) ([]int, error) {
	ids, err := r.messages.MarkRead(ctx, conversationID, readerID)
	if errors.Is(err, repositories.ErrConversationNotFound) || errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, nil
	}
	return ids, err
}

// Annotate fills the derived status on each message from the conversation's
// current participant count.
func (r *Reconciler) Annotate(ctx context.Context, conversationID int, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	participants, err := r.conversations.Participants(ctx, conversationID)
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].Status = StatusOf(len(msgs[i].ReadBy), len(participants))
	}
	return nil
}
