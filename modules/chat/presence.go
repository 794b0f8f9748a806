package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/jaevor/go-nanoid"
)

// DefaultMaxUsernameLength is the longest display name kept, in runes.
const DefaultMaxUsernameLength = 20

const (
	defaultNamePrefix   = "User_"
	defaultNameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	defaultNameLength   = 6
)

// MemberLister lists the members of a room.
type MemberLister interface {
	Members(roomID string) []string
}

// Presence maps connections to user profiles and online status.
type Presence struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	rooms     MemberLister
	maxName   int
	nameToken func() string
}

// NewPresence creates a presence tracker. Names longer than maxName runes are
// truncated.
func NewPresence(rooms MemberLister, maxName int) (*Presence, error) {
	if maxName <= 0 {
		maxName = DefaultMaxUsernameLength
	}
	gen, err := nanoid.CustomASCII(defaultNameAlphabet, defaultNameLength)
	if err != nil {
		return nil, fmt.Errorf("username generator: %w", err)
	}
	return &Presence{
		users:     make(map[string]*domain.User),
		rooms:     rooms,
		maxName:   maxName,
		nameToken: gen,
	}, nil
}

// DefaultUsername returns a generated display name such as User_k3x9ab.
func (p *Presence) DefaultUsername() string {
	return defaultNamePrefix + p.nameToken()
}

// normalizeUsername trims name, falls back to a generated name when empty and
// truncates to the configured maximum.
func (p *Presence) normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || !utf8.ValidString(name) {
		return p.DefaultUsername()
	}
	if utf8.RuneCountInString(name) > p.maxName {
		name = strings.TrimSpace(string([]rune(name)[:p.maxName]))
	}
	return name
}

// Connect registers a new connection with a generated username.
func (p *Presence) Connect(connID string) domain.User {
	p.mu.Lock()
	defer p.mu.Unlock()

	if user, ok := p.users[connID]; ok {
		return *user
	}
	user := &domain.User{
		ID:       connID,
		Username: p.DefaultUsername(),
		Online:   true,
	}
	p.users[connID] = user
	return *user
}

// SetProfile updates the display name and avatar of a connection.
func (p *Presence) SetProfile(connID, username, avatar string) (domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[connID]
	if !ok {
		return domain.User{}, ErrUnknownConnection
	}
	user.Username = p.normalizeUsername(username)
	user.Avatar = strings.TrimSpace(avatar)
	return *user, nil
}

// Rename changes only the display name; an empty name keeps the current one.
func (p *Presence) Rename(connID, username string) (domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[connID]
	if !ok {
		return domain.User{}, ErrUnknownConnection
	}
	if strings.TrimSpace(username) != "" {
		user.Username = p.normalizeUsername(username)
	}
	return *user, nil
}

// SetActiveRoom records which room the user is currently viewing. An empty
// roomID means none.
func (p *Presence) SetActiveRoom(connID, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[connID]
	if !ok {
		return ErrUnknownConnection
	}
	user.ActiveRoom = roomID
	return nil
}

// Disconnect marks the user offline and forgets the connection.
func (p *Presence) Disconnect(connID string) (domain.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[connID]
	if !ok {
		return domain.User{}, false
	}
	delete(p.users, connID)
	out := *user
	out.Online = false
	out.ActiveRoom = ""
	return out, true
}

// Get returns the user for a connection.
func (p *Presence) Get(connID string) (domain.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.users[connID]
	if !ok {
		return domain.User{}, false
	}
	return *user, true
}

// Username returns the display name of a connection, or the id itself when
// the connection is unknown.
func (p *Presence) Username(connID string) string {
	if user, ok := p.Get(connID); ok {
		return user.Username
	}
	return connID
}

// ListOnline returns online users sorted by id. A non-empty roomID restricts
// the result to that room's members.
func (p *Presence) ListOnline(roomID string) []domain.User {
	var filter map[string]struct{}
	if roomID != "" {
		filter = make(map[string]struct{})
		if p.rooms != nil {
			for _, id := range p.rooms.Members(roomID) {
				filter[id] = struct{}{}
			}
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]domain.User, 0, len(p.users))
	for id, user := range p.users {
		if filter != nil {
			if _, ok := filter[id]; !ok {
				continue
			}
		}
		result = append(result, *user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ActiveViewers returns the ids of users currently viewing roomID.
func (p *Presence) ActiveViewers(roomID string) map[string]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	viewers := make(map[string]struct{})
	for id, user := range p.users {
		if roomID != "" && user.ActiveRoom == roomID {
			viewers[id] = struct{}{}
		}
	}
	return viewers
}

// Count returns the number of online users.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users)
}
