package chat

import (
	"sort"
	"sync"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ReadMarker records per-user read flags on stored messages.
type ReadMarker interface {
	MarkRead(roomID, userID string, messageIDs []string) int
}

// UnreadUpdate is the new unread count of one user in one room.
type UnreadUpdate struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

// Unread keeps per-user, per-room unread counters.
type Unread struct {
	mu     sync.RWMutex
	counts map[string]map[string]int // userID -> roomID -> count
	store  ReadMarker
}

// NewUnread creates an unread tracker that forwards read marks to store.
func NewUnread(store ReadMarker) *Unread {
	return &Unread{
		counts: make(map[string]map[string]int),
		store:  store,
	}
}

// OnMessageAppended increments the counter of every member that is neither the
// sender nor viewing the room, and returns the new counts sorted by user id.
func (u *Unread) OnMessageAppended(msg domain.Message, members []string, activeViewers map[string]struct{}) []UnreadUpdate {
	u.mu.Lock()
	defer u.mu.Unlock()

	var updates []UnreadUpdate
	for _, userID := range members {
		if userID == msg.SenderID {
			continue
		}
		if _, viewing := activeViewers[userID]; viewing {
			continue
		}
		rooms := u.counts[userID]
		if rooms == nil {
			rooms = make(map[string]int)
			u.counts[userID] = rooms
		}
		rooms[msg.RoomID]++
		updates = append(updates, UnreadUpdate{UserID: userID, RoomID: msg.RoomID, Count: rooms[msg.RoomID]})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].UserID < updates[j].UserID })
	return updates
}

// MarkRead resets the user's counter for the room and marks the messages read.
// It returns how many of the ids exist in the room.
func (u *Unread) MarkRead(userID, roomID string, messageIDs []string) int {
	u.mu.Lock()
	if rooms := u.counts[userID]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(u.counts, userID)
		}
	}
	u.mu.Unlock()

	if u.store == nil {
		return 0
	}
	return u.store.MarkRead(roomID, userID, messageIDs)
}

// Count returns the unread count of one user in one room.
func (u *Unread) Count(userID, roomID string) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[userID][roomID]
}

// GetCounts returns a snapshot of every non-zero counter of a user.
func (u *Unread) GetCounts(userID string) map[string]int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]int, len(u.counts[userID]))
	for roomID, n := range u.counts[userID] {
		out[roomID] = n
	}
	return out
}

// ForgetRoom drops the user's counter for one room.
func (u *Unread) ForgetRoom(userID, roomID string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if rooms := u.counts[userID]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(u.counts, userID)
		}
	}
}

// Forget drops every counter of a user.
func (u *Unread) Forget(userID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.counts, userID)
}
