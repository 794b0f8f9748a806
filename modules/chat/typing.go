package chat

import (
	"sort"
	"sync"
	"time"
)

// Typing tracks, per room, which users are composing a message.
type Typing struct {
	mu    sync.Mutex
	rooms map[string]map[string]*typingEntry // roomID -> userID -> entry
	now   func() time.Time
}

type typingEntry struct {
	since time.Time // first signal, fixes the order
	seen  time.Time // last signal, drives expiry
}

// NewTyping creates an empty typing aggregator.
func NewTyping() *Typing {
	return &Typing{
		rooms: make(map[string]map[string]*typingEntry),
		now:   time.Now,
	}
}

// SetTyping adds or removes userID from the room's typing set and returns the
// updated set. Repeated true signals refresh the entry without moving the
// user in the order.
func (t *Typing) SetTyping(roomID, userID string, isTyping bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		users := t.rooms[roomID]
		if users == nil {
			users = make(map[string]*typingEntry)
			t.rooms[roomID] = users
		}
		now := t.now()
		if entry, ok := users[userID]; ok {
			entry.seen = now
		} else {
			users[userID] = &typingEntry{since: now, seen: now}
		}
	} else {
		t.removeLocked(roomID, userID)
	}
	return t.usersLocked(roomID)
}

// Remove drops userID from the room's typing set and reports whether it was
// present.
func (t *Typing) Remove(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(roomID, userID)
}

func (t *Typing) removeLocked(roomID, userID string) bool {
	users := t.rooms[roomID]
	if users == nil {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// ClearUser removes userID from every room and returns the sorted ids of the
// rooms whose set changed.
func (t *Typing) ClearUser(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []string
	for roomID := range t.rooms {
		if t.removeLocked(roomID, userID) {
			changed = append(changed, roomID)
		}
	}
	sort.Strings(changed)
	return changed
}

// Users returns the typing set of a room, ordered by first typing signal.
func (t *Typing) Users(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usersLocked(roomID)
}

// IsTyping reports whether userID is in the room's typing set.
func (t *Typing) IsTyping(roomID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rooms[roomID][userID]
	return ok
}

func (t *Typing) usersLocked(roomID string) []string {
	users := t.rooms[roomID]
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := users[ids[i]].since, users[ids[j]].since
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Sweep removes entries last refreshed before cutoff. It returns the expired
// user ids keyed by room.
func (t *Typing) Sweep(cutoff time.Time) map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	expired := make(map[string][]string)
	for roomID, users := range t.rooms {
		for userID, entry := range users {
			if entry.seen.Before(cutoff) {
				expired[roomID] = append(expired[roomID], userID)
			}
		}
	}
	for roomID, ids := range expired {
		sort.Strings(ids)
		for _, id := range ids {
			t.removeLocked(roomID, id)
		}
	}
	return expired
}
