package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the user directory.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	BulkUsers(ctx context.Context, userIDs []int) ([]models.User, error)
	SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error
	ResetAllOnline(ctx context.Context) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, display_name, avatar, is_online, last_seen, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query.
func (r *UserRepo) BulkUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	ids := make(pq.Int64Array, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, int64(id))
	}

	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, username, display_name, avatar, is_online, last_seen, created_at FROM users WHERE id = ANY($1)`, ids)
	return users, err
}

// SetOnline persists the derived online flag and last-seen timestamp.
func (r *UserRepo) SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$2, last_seen=$3 WHERE id=$1`, userID, online, lastSeen)
	return err
}

// ResetAllOnline clears every stored online flag. Run once at startup before
// accepting connections so a crash cannot leave stale "online" rows behind.
func (r *UserRepo) ResetAllOnline(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = FALSE WHERE is_online = TRUE`)
	return err
}
