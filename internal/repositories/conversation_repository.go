package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateDirect(ctx context.Context, userID int, friendID int) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	Participants(ctx context.Context, conversationID int) ([]int, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	SetLastMessage(ctx context.Context, conversationID int, messageID int) error
	ConversationIDsForUser(ctx context.Context, userID int) ([]int, error)
	ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, kind, name, picture, last_message_id, created_at`

// CreateDirect returns the direct conversation between the two users,
// creating it if absent. The sorted-pair unique key makes concurrent
// creation collapse onto a single row.
func (r *ConversationRepo) CreateDirect(ctx context.Context, userID int, friendID int) (models.Conversation, error) {
	if userID == friendID {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	pair, directKey := directKeyFor(userID, friendID)

	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (kind, direct_key) VALUES ($1, $2)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING `+conversationColumns, models.ConversationDirect, directKey).StructScan(&conv)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Conversation{}, err
		}
		// Lost the race or the conversation already existed.
		if err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, directKey); err != nil {
			return models.Conversation{}, err
		}
		return conv, nil
	}

	for _, id := range pair {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
            ON CONFLICT DO NOTHING`, conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}
	return conv, nil
}

// directKeyFor normalizes a user pair into the unique key of their direct
// conversation. Both orderings of the pair produce the same key.
func directKeyFor(userID, friendID int) ([]int, string) {
	pair := []int{userID, friendID}
	sort.Ints(pair)
	return pair, fmt.Sprintf("%d:%d", pair[0], pair[1])
}

// CreateGroup creates a group conversation. The creator is always a
// participant and the sole initial admin; member ids are deduplicated.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	if err := tx.QueryRowxContext(ctx, `INSERT INTO conversations (kind, name) VALUES ($1, $2)
        RETURNING `+conversationColumns, models.ConversationGroup, name).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	members := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}
	for id := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, $3)`,
			conv.ID, id, id == creatorID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Participants returns the participant ids of a conversation.
func (r *ConversationRepo) Participants(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return ids, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// SetLastMessage updates the most-recent-message pointer.
func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID int, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2 WHERE id=$1`, conversationID, messageID)
	return err
}

// ConversationIDsForUser returns every conversation the user participates in.
func (r *ConversationRepo) ConversationIDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT conversation_id FROM conversation_participants WHERE user_id=$1`, userID)
	return ids, err
}

// ListConversations returns the user's conversations, most recent first,
// with participant ids and the last message attached.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.kind, c.name, c.picture, c.last_message_id, c.created_at FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $1
        LEFT JOIN messages m ON m.id = c.last_message_id
        ORDER BY COALESCE(m.created_at, c.created_at) DESC`
	var convs []models.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, err
	}

	result := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		participants, err := r.Participants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		summary := models.ConversationSummary{Conversation: conv, ParticipantIDs: participants}
		if conv.LastMessageID != nil {
			var msg models.Message
			err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, type, reply_to_id, created_at FROM messages WHERE id=$1`, *conv.LastMessageID)
			if err == nil {
				summary.LastMessage = &msg
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}
		result = append(result, summary)
	}
	return result, nil
}
