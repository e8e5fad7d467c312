package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the message log.
type MessageRepository interface {
	Append(ctx context.Context, conversationID int, senderID int, content string, msgType models.MessageType, replyToID *int) (models.Message, error)
	ListSince(ctx context.Context, conversationID int, before *time.Time, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID int, readerID int) ([]int, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. The sender's read acknowledgement and the
// conversation's last-message pointer are written in the same transaction so
// a partial failure cannot leave the log and the pointer disagreeing.
func (r *MessageRepo) Append(ctx context.Context, conversationID int, senderID int, content string, msgType models.MessageType, replyToID *int) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content, type, reply_to_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, conversation_id, sender_id, content, type, reply_to_id, created_at`,
		conversationID, senderID, content, msgType, replyToID).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`, msg.ID, senderID); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2 WHERE id=$1`, conversationID, msg.ID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	msg.ReadBy = []int{senderID}
	return msg, nil
}

// ListSince returns messages in ascending creation order with their read-by
// sets. A nil before returns the newest page.
func (r *MessageRepo) ListSince(ctx context.Context, conversationID int, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT * FROM (
            SELECT m.id, m.conversation_id, m.sender_id, m.content, m.type, m.reply_to_id, m.created_at,
                COALESCE(ARRAY_AGG(r.user_id ORDER BY r.user_id) FILTER (WHERE r.user_id IS NOT NULL), '{}') AS read_by
            FROM messages m
            LEFT JOIN message_reads r ON r.message_id = m.id
            WHERE m.conversation_id = $1 AND ($2::timestamptz IS NULL OR m.created_at < $2)
            GROUP BY m.id
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT $3
        ) page ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryxContext(ctx, query, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var readBy pq.Int64Array
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.ReplyToID, &msg.CreatedAt, &readBy); err != nil {
			return nil, err
		}
		msg.ReadBy = make([]int, 0, len(readBy))
		for _, id := range readBy {
			msg.ReadBy = append(msg.ReadBy, int(id))
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkRead adds the reader to the read-by set of every message in the
// conversation they have not yet acknowledged, excluding their own messages.
// Returns the newly marked ids in ascending order; an empty result is a
// valid no-op.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID int, readerID int) ([]int, error) {
	rows, err := r.db.QueryxContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $2 FROM messages m
        WHERE m.conversation_id = $1 AND m.sender_id <> $2
            AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2)
        ON CONFLICT DO NOTHING
        RETURNING message_id`, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Ints(ids)
	return ids, nil
}

// GetMessage retrieves a single message with its read-by set.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	var readBy pq.Int64Array
	err := r.db.QueryRowxContext(ctx, `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.type, m.reply_to_id, m.created_at,
            COALESCE(ARRAY_AGG(r.user_id ORDER BY r.user_id) FILTER (WHERE r.user_id IS NOT NULL), '{}') AS read_by
        FROM messages m
        LEFT JOIN message_reads r ON r.message_id = m.id
        WHERE m.id = $1
        GROUP BY m.id`, messageID).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.ReplyToID, &msg.CreatedAt, &readBy)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msg.ReadBy = make([]int, 0, len(readBy))
	for _, id := range readBy {
		msg.ReadBy = append(msg.ReadBy, int(id))
	}
	return msg, nil
}
