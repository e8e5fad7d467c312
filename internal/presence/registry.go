package presence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/models"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/observability"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
)

// Conn is one live connection of a user session. Send must not block; it
// reports false when the connection's buffer is full.
type Conn interface {
	UserID() int
	Send(event models.Event) bool
}

// Registry tracks live connection handles per user. It is the source of
// truth for reachability while the process runs; the stored is_online flag
// is only a projection written back on transitions. State is volatile and
// empty after a restart.
type Registry struct {
	mu    sync.Mutex
	conns map[int]map[Conn]struct{}
	users repositories.UserRepository
}

// NewRegistry constructs an empty Registry.
func NewRegistry(users repositories.UserRepository) *Registry {
	return &Registry{
		conns: make(map[int]map[Conn]struct{}),
		users: users,
	}
}

// Register adds a connection handle for the user. On the first handle the
// user transitions offline->online: the flag is persisted and a user_status
// event is broadcast to every live connection, the new one included. The
// mutex is held across the whole transition so a disconnect racing a
// reconnect cannot publish a stale offline status.
func (r *Registry) Register(ctx context.Context, userID int, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[conn] = struct{}{}
	if len(set) > 1 {
		return
	}

	now := time.Now()
	if err := r.users.SetOnline(ctx, userID, true, now); err != nil {
		log.Printf("failed to persist online status for user %d: %v", userID, err)
	}
	observability.SetOnlineUsers(len(r.conns))
	r.broadcastLocked(statusEvent(userID, true, now))
}

// Unregister removes a connection handle. When the user's last handle goes
// away the entry is deleted, the offline flag persisted and an offline
// user_status event broadcast.
func (r *Registry) Unregister(ctx context.Context, userID int, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) > 0 {
		return
	}
	delete(r.conns, userID)

	now := time.Now()
	if err := r.users.SetOnline(ctx, userID, false, now); err != nil {
		log.Printf("failed to persist offline status for user %d: %v", userID, err)
	}
	observability.SetOnlineUsers(len(r.conns))
	r.broadcastLocked(statusEvent(userID, false, now))
}

// IsOnline reports whether the user has at least one live handle.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID]) > 0
}

// ListOnline returns a sorted snapshot of currently online user ids.
func (r *Registry) ListOnline() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// HandlesFor returns every live handle of the user.
func (r *Registry) HandlesFor(userID int) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]Conn, 0, len(r.conns[userID]))
	for conn := range r.conns[userID] {
		handles = append(handles, conn)
	}
	return handles
}

func (r *Registry) broadcastLocked(event models.Event) {
	for userID, set := range r.conns {
		for conn := range set {
			if !conn.Send(event) {
				log.Printf("dropping %s event for slow connection of user %d", event.Type, userID)
			}
		}
	}
}

func statusEvent(userID int, online bool, at time.Time) models.Event {
	return models.Event{
		Type: models.EventUserStatus,
		Payload: models.UserStatusPayload{
			UserID:   userID,
			IsOnline: online,
			LastSeen: at,
		},
		Timestamp: at,
	}
}
