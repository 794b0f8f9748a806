package chat

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	domain "github.com/example/realtime-chat/domain/chat"
)

// MaxRoomNameLength is the longest room name kept, in runes.
const MaxRoomNameLength = 100

type roomState struct {
	id        string
	name      string
	createdAt time.Time
	members   map[string]struct{}
}

func (r *roomState) snapshot() domain.Room {
	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return domain.Room{
		ID:        r.id,
		Name:      r.name,
		Members:   members,
		CreatedAt: r.createdAt,
	}
}

// Registry owns rooms and their membership. Rooms are never deleted.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*roomState
	strict     bool
	leaveHooks []func(roomID, userID string)
	now        func() time.Time
}

// NewRegistry creates a room registry. In strict mode joining an unknown room
// fails instead of creating it.
func NewRegistry(strict bool) *Registry {
	return &Registry{
		rooms:  make(map[string]*roomState),
		strict: strict,
		now:    time.Now,
	}
}

// OnLeave registers fn to run after a user leaves a room.
func (r *Registry) OnLeave(fn func(roomID, userID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveHooks = append(r.leaveHooks, fn)
}

func normalizeRoomName(roomID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return roomID
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		name = string([]rune(name)[:MaxRoomNameLength])
	}
	return name
}

// Create creates a room with an explicit name.
func (r *Registry) Create(roomID, name string) (domain.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return domain.Room{}, ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		return domain.Room{}, ErrRoomExists
	}
	room := r.createLocked(roomID, normalizeRoomName(roomID, name))
	return room.snapshot(), nil
}

func (r *Registry) createLocked(roomID, name string) *roomState {
	room := &roomState{
		id:        roomID,
		name:      name,
		createdAt: r.now(),
		members:   make(map[string]struct{}),
	}
	r.rooms[roomID] = room
	return room
}

// GetOrCreateDefault returns the room, creating it named after its id when it
// does not exist yet.
func (r *Registry) GetOrCreateDefault(roomID string) (domain.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return domain.Room{}, ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = r.createLocked(roomID, roomID)
	}
	return room.snapshot(), nil
}

// Join adds userID to the room. Joining twice has no further effect.
func (r *Registry) Join(roomID, userID string) (domain.Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return domain.Room{}, ErrEmptyRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		if r.strict {
			return domain.Room{}, ErrUnknownRoom
		}
		room = r.createLocked(roomID, roomID)
	}
	room.members[userID] = struct{}{}
	return room.snapshot(), nil
}

// Leave removes userID from the room and runs the leave hooks. It reports
// whether the user was a member. The room itself is kept.
func (r *Registry) Leave(roomID, userID string) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	_, member := room.members[userID]
	delete(room.members, userID)
	hooks := append([]func(string, string){}, r.leaveHooks...)
	r.mu.Unlock()

	if member {
		for _, hook := range hooks {
			hook(roomID, userID)
		}
	}
	return member
}

// Get returns a room snapshot.
func (r *Registry) Get(roomID string) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, false
	}
	return room.snapshot(), true
}

// Exists reports whether the room exists.
func (r *Registry) Exists(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// IsMember reports whether userID is in the room.
func (r *Registry) IsMember(roomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, member := room.members[userID]
	return member
}

// Members returns the sorted member ids of a room.
func (r *Registry) Members(roomID string) []string {
	room, ok := r.Get(roomID)
	if !ok {
		return nil
	}
	return room.Members
}

// RoomsOf returns the sorted ids of every room userID belongs to.
func (r *Registry) RoomsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, room := range r.rooms {
		if _, ok := room.members[userID]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// List returns room summaries ordered by creation time, then id.
func (r *Registry) List() []domain.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, domain.RoomSummary{
			ID:          room.id,
			Name:        room.name,
			MemberCount: len(room.members),
			CreatedAt:   room.createdAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}
