package models

import "time"

// User is a directory entry. IsOnline is a cached projection of the
// presence registry and is rewritten on every online/offline transition;
// the registry is authoritative while the process runs.
type User struct {
	ID          int       `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Avatar      string    `db:"avatar" json:"avatar,omitempty"`
	IsOnline    bool      `db:"is_online" json:"is_online"`
	LastSeen    time.Time `db:"last_seen" json:"last_seen"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
