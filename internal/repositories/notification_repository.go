package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository stores per-recipient notification records.
type NotificationRepository interface {
	Create(ctx context.Context, notification models.Notification) (models.Notification, error)
	ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID int, userID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists a notification record.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	err := r.db.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, type, title, body, conversation_id, message_id, sender_id, sender_name)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, user_id, type, title, body, is_read, conversation_id, message_id, sender_id, sender_name, created_at`,
		n.UserID, n.Type, n.Title, n.Body, n.ConversationID, n.MessageID, n.SenderID, n.SenderName).StructScan(&n)
	return n, err
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []models.Notification
	err := r.db.SelectContext(ctx, &notifications, `SELECT id, user_id, type, title, body, is_read, conversation_id, message_id, sender_id, sender_name, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	return notifications, err
}

// MarkNotificationRead flags a notification read for its owner.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, notificationID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1 AND user_id=$2`, notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
