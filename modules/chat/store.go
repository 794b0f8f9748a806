package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Pagination defaults.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// RoomLookup reports whether a room exists.
type RoomLookup interface {
	Exists(roomID string) bool
}

// record is the mutable storage form of a message. Only delivered, readBy and
// reactions change after append.
type record struct {
	msg       domain.Message
	readBy    map[string]struct{}
	readOrder []string
	reactions map[string]map[string]struct{}
}

func (r *record) snapshot() domain.Message {
	out := r.msg
	out.ReadBy = append([]string(nil), r.readOrder...)
	if out.ReadBy == nil {
		out.ReadBy = []string{}
	}
	out.Read = len(r.readOrder) > 0
	out.Reactions = make(map[string][]string, len(r.reactions))
	for kind, users := range r.reactions {
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out.Reactions[kind] = ids
	}
	return out
}

// Store is the append-only per-room message log.
type Store struct {
	mu       sync.RWMutex
	rooms    RoomLookup
	logs     map[string][]*record       // roomID -> messages in arrival order
	index    map[string]map[string]int // roomID -> messageID -> position
	seq      uint64
	pageSize int
	maxPage  int
	now      func() time.Time
}

// NewStore creates a message store. rooms is consulted on every append.
func NewStore(rooms RoomLookup, pageSize, maxPage int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageLimit
	}
	if maxPage <= 0 {
		maxPage = MaxPageLimit
	}
	if pageSize > maxPage {
		pageSize = maxPage
	}
	return &Store{
		rooms:    rooms,
		logs:     make(map[string][]*record),
		index:    make(map[string]map[string]int),
		pageSize: pageSize,
		maxPage:  maxPage,
		now:      time.Now,
	}
}

// Append stores a new message. The body is trimmed before validation.
func (s *Store) Append(roomID, senderID, senderName, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}
	if s.rooms == nil || !s.rooms.Exists(roomID) {
		return domain.Message{}, fmt.Errorf("append to %q: %w", roomID, ErrUnknownRoom)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := s.nextID(roomID, now)
	rec := &record{
		msg: domain.Message{
			ID:         id,
			RoomID:     roomID,
			SenderID:   senderID,
			SenderName: senderName,
			Body:       body,
			Timestamp:  now,
		},
		readBy:    make(map[string]struct{}),
		reactions: make(map[string]map[string]struct{}),
	}
	s.insert(rec)
	return rec.snapshot(), nil
}

// Restore loads a previously archived message, keeping its id. Messages whose
// id is already present are skipped.
func (s *Store) Restore(msg domain.Message) bool {
	if strings.TrimSpace(msg.Body) == "" || msg.ID == "" || msg.RoomID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[msg.RoomID][msg.ID]; dup {
		return false
	}
	rec := &record{
		msg:       msg,
		readBy:    make(map[string]struct{}),
		reactions: make(map[string]map[string]struct{}),
	}
	rec.msg.Read = false
	rec.msg.ReadBy = nil
	rec.msg.Reactions = nil
	s.insert(rec)
	return true
}

func (s *Store) insert(rec *record) {
	roomID := rec.msg.RoomID
	if s.index[roomID] == nil {
		s.index[roomID] = make(map[string]int)
	}
	s.index[roomID][rec.msg.ID] = len(s.logs[roomID])
	s.logs[roomID] = append(s.logs[roomID], rec)
}

// nextID returns a unique id of the form msg_<unixmilli>_<seq>.
func (s *Store) nextID(roomID string, now time.Time) string {
	for {
		s.seq++
		id := fmt.Sprintf("msg_%d_%d", now.UnixMilli(), s.seq)
		if _, taken := s.index[roomID][id]; !taken {
			return id
		}
	}
}

// GetPage returns up to limit messages strictly older than beforeID, newest
// first. An empty beforeID starts from the newest message. Unknown rooms and
// unknown cursors yield an empty page.
func (s *Store) GetPage(roomID, beforeID string, limit int) domain.Page {
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[roomID]
	end := len(log)
	if beforeID != "" {
		pos, ok := s.index[roomID][beforeID]
		if !ok {
			return domain.Page{Messages: []domain.Message{}}
		}
		end = pos
	}

	start := end - limit
	if start < 0 {
		start = 0
	}
	page := domain.Page{
		Messages: make([]domain.Message, 0, end-start),
		HasMore:  start > 0,
	}
	for i := end - 1; i >= start; i-- {
		page.Messages = append(page.Messages, log[i].snapshot())
	}
	return page
}

// Get returns a single message.
func (s *Store) Get(roomID, messageID string) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(roomID, messageID)
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	return rec.snapshot(), nil
}

func (s *Store) lookup(roomID, messageID string) (*record, bool) {
	pos, ok := s.index[roomID][messageID]
	if !ok {
		return nil, false
	}
	return s.logs[roomID][pos], true
}

// AddReaction records that userID reacted with kind. Adding the same reaction
// twice has no further effect.
func (s *Store) AddReaction(roomID, messageID, userID, kind string) (domain.Message, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return domain.Message{}, ErrEmptyReaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(roomID, messageID)
	if !ok {
		return domain.Message{}, fmt.Errorf("react to %q: %w", messageID, ErrMessageNotFound)
	}
	users := rec.reactions[kind]
	if users == nil {
		users = make(map[string]struct{})
		rec.reactions[kind] = users
	}
	users[userID] = struct{}{}
	return rec.snapshot(), nil
}

// MarkRead adds userID to the readers of every listed message in the room and
// returns how many of the ids exist there. Unknown ids are ignored.
func (s *Store) MarkRead(roomID, userID string, messageIDs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	seen := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := s.lookup(roomID, id)
		if !ok {
			continue
		}
		marked++
		if _, already := rec.readBy[userID]; already {
			continue
		}
		rec.readBy[userID] = struct{}{}
		rec.readOrder = append(rec.readOrder, userID)
	}
	return marked
}

// MarkDelivered flags a message as handed to at least one other recipient.
func (s *Store) MarkDelivered(roomID, messageID string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(roomID, messageID)
	if !ok {
		return domain.Message{}, false
	}
	rec.msg.Delivered = true
	return rec.snapshot(), true
}

// Search returns messages whose body contains query, ignoring case, newest
// first. An empty query matches nothing.
func (s *Store) Search(roomID, query string) []domain.Message {
	query = strings.ToLower(strings.TrimSpace(query))
	result := []domain.Message{}
	if query == "" {
		return result
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[roomID]
	for i := len(log) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(log[i].msg.Body), query) {
			result = append(result, log[i].snapshot())
		}
	}
	return result
}

// Count returns the number of messages stored for a room.
func (s *Store) Count(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[roomID])
}
