package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type expiryRecorder struct {
	mu      sync.Mutex
	expired [][2]int
}

func (r *expiryRecorder) record(conversationID, userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, [2]int{conversationID, userID})
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func TestTypingExpiresWithoutStop(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, recorder.record)

	tracker.Start(1, 2)
	assert.True(t, tracker.IsTyping(1, 2))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, tracker.IsTyping(1, 2))
	assert.Equal(t, 1, recorder.count())
}

func TestTypingStopCancelsExpiry(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := NewTypingTracker(30*time.Millisecond, recorder.record)

	tracker.Start(1, 2)
	assert.True(t, tracker.Stop(1, 2))
	assert.False(t, tracker.IsTyping(1, 2))

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, recorder.count())
}

func TestTypingStartRearmsTimer(t *testing.T) {
	recorder := &expiryRecorder{}
	tracker := NewTypingTracker(60*time.Millisecond, recorder.record)

	tracker.Start(1, 2)
	time.Sleep(40 * time.Millisecond)
	tracker.Start(1, 2)
	time.Sleep(40 * time.Millisecond)

	// The second start reset the clock, so no expiry yet.
	assert.True(t, tracker.IsTyping(1, 2))
	assert.Zero(t, recorder.count())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, tracker.IsTyping(1, 2))
	assert.Equal(t, 1, recorder.count())
}

func TestTypingStopWithoutStart(t *testing.T) {
	tracker := NewTypingTracker(30*time.Millisecond, nil)
	assert.False(t, tracker.Stop(1, 2))
}

func TestTypingEntriesAreIndependent(t *testing.T) {
	tracker := NewTypingTracker(time.Minute, nil)

	tracker.Start(1, 2)
	tracker.Start(1, 3)
	tracker.Start(4, 2)

	assert.True(t, tracker.Stop(1, 2))
	assert.True(t, tracker.IsTyping(1, 3))
	assert.True(t, tracker.IsTyping(4, 2))
}
