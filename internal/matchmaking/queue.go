// Package matchmaking holds the FIFO waiting list that pairs public players
// into rooms. No skill matching: the two oldest entries are paired.
package matchmaking

import (
	"sync"

	"github.com/okstone/gomoku/internal/models"
)

// Entry is one waiting player: the connection identity plus the profile
// snapshot it presented when queueing.
type Entry struct {
	SessionID string
	Profile   models.ProfileSnapshot
}

// Queue is a strict-FIFO waiting list. A profile id may be enqueued at most
// once; re-enqueueing is a no-op.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	byID    map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{byID: make(map[string]struct{})}
}

// Enqueue appends the entry unless its profile id is already waiting.
// Returns true if the entry was added.
func (q *Queue) Enqueue(sessionID string, profile models.ProfileSnapshot) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.byID[profile.ID]; dup {
		return false
	}
	q.entries = append(q.entries, Entry{SessionID: sessionID, Profile: profile})
	q.byID[profile.ID] = struct{}{}
	return true
}

// DequeuePair removes and returns the two oldest entries once the queue
// holds at least two.
func (q *Queue) DequeuePair() (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return Entry{}, Entry{}, false
	}
	first, second := q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	delete(q.byID, first.Profile.ID)
	delete(q.byID, second.Profile.ID)
	return first, second, true
}

// Remove deletes a specific waiting entry by connection identity, used on
// queue cancel and on disconnect. Returns true if an entry was removed.
func (q *Queue) Remove(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.SessionID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.byID, e.Profile.ID)
			return true
		}
	}
	return false
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
