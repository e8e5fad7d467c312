package chat

import (
	"sync"
	"time"
)

// TypingTTL is how long a typing indicator survives without a stop event.
const TypingTTL = 3 * time.Second

type typingKey struct {
	conversationID int
	userID         int
}

// TypingTracker holds soft per-(conversation, user) typing state. Entries
// expire TypingTTL after the most recent start; a stop, a new start or a
// message from the same user clears or re-arms the timer. Nothing is
// persisted.
type TypingTracker struct {
	mu       sync.Mutex
	timers   map[typingKey]*time.Timer
	ttl      time.Duration
	onExpire func(conversationID int, userID int)
}

// NewTypingTracker constructs a tracker. onExpire runs when an entry times
// out without an explicit stop.
func NewTypingTracker(ttl time.Duration, onExpire func(conversationID int, userID int)) *TypingTracker {
	if ttl <= 0 {
		ttl = TypingTTL
	}
	return &TypingTracker{
		timers:   make(map[typingKey]*time.Timer),
		ttl:      ttl,
		onExpire: onExpire,
	}
}

// Start marks the user as typing and arms (or re-arms) the expiry timer.
func (t *TypingTracker) Start(conversationID int, userID int) {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.expire(key)
	})
}

// Stop clears the typing state. Returns true if the user was typing.
func (t *TypingTracker) Stop(conversationID int, userID int) bool {
	key := typingKey{conversationID: conversationID, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, key)
	return true
}

// IsTyping reports whether the user currently counts as typing.
func (t *TypingTracker) IsTyping(conversationID int, userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[typingKey{conversationID: conversationID, userID: userID}]
	return ok
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok && t.onExpire != nil {
		t.onExpire(key.conversationID, key.userID)
	}
}
