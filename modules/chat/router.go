package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// RoomSeed is a room created when the engine starts.
type RoomSeed struct {
	ID   string
	Name string
}

// Config tunes an Engine.
type Config struct {
	StrictRooms       bool
	DefaultRooms      []RoomSeed
	MaxUsernameLength int
	PageLimit         int
	MaxPageLimit      int
	TypingTTL         time.Duration
}

type connState int

const (
	stateConnected connState = iota
	stateIdentified
)

// Stats is a point-in-time view of engine size.
type Stats struct {
	Connections int `json:"connections"`
	Identified  int `json:"identified"`
	Rooms       int `json:"rooms"`
}

// Engine is the authoritative chat state. Every mutating call runs under one
// mutex and returns the outbound effects it produced.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	logger   *slog.Logger
	store    *Store
	rooms    *Registry
	presence *Presence
	typing   *Typing
	unread   *Unread
	conns    map[string]connState

	appended    []domain.Message
	appendHooks []func(domain.Message)
	privateSeq  uint64
	now         func() time.Time
}

// NewEngine builds an engine with empty state and the configured default rooms.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rooms := NewRegistry(cfg.StrictRooms)
	store := NewStore(rooms, cfg.PageLimit, cfg.MaxPageLimit)
	presence, err := NewPresence(rooms, cfg.MaxUsernameLength)
	if err != nil {
		return nil, err
	}
	typing := NewTyping()
	unread := NewUnread(store)

	rooms.OnLeave(func(roomID, userID string) {
		typing.Remove(roomID, userID)
		unread.ForgetRoom(userID, roomID)
	})

	for _, seed := range cfg.DefaultRooms {
		if _, err := rooms.Create(seed.ID, seed.Name); err != nil && !errors.Is(err, ErrRoomExists) {
			return nil, fmt.Errorf("default room %q: %w", seed.ID, err)
		}
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		rooms:    rooms,
		presence: presence,
		typing:   typing,
		unread:   unread,
		conns:    make(map[string]connState),
		now:      time.Now,
	}, nil
}

// OnMessageAppended registers fn to run after every stored room message. Hooks
// run outside the engine lock.
func (e *Engine) OnMessageAppended(fn func(domain.Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appendHooks = append(e.appendHooks, fn)
}

// Connect registers a new connection and greets it.
func (e *Engine) Connect(connID string) (domain.User, []Effect) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.presence.Connect(connID)
	if _, ok := e.conns[connID]; !ok {
		e.conns[connID] = stateConnected
	}
	e.logger.Debug("connection opened", "conn", connID, "username", user.Username)
	return user, []Effect{e.unicast(connID, OutConnected, ConnectedPayload{ID: user.ID, Username: user.Username})}
}

// Handle decodes and applies one inbound event. Rejected events are logged and
// produce no effects.
func (e *Engine) Handle(connID, event string, raw json.RawMessage) []Effect {
	effects, _ := e.HandleEvent(connID, event, raw)
	return effects
}

// HandleEvent is Handle that also returns why an event was rejected.
func (e *Engine) HandleEvent(connID, event string, raw json.RawMessage) ([]Effect, error) {
	req, err := DecodeRequest(event, raw)
	if err != nil {
		e.logReject(connID, event, err)
		return nil, err
	}
	effects, err := e.Dispatch(connID, req)
	if err != nil {
		e.logReject(connID, event, err)
		return nil, err
	}
	return effects, nil
}

// Dispatch applies an already decoded request.
func (e *Engine) Dispatch(connID string, req Request) ([]Effect, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	effects, err := e.dispatchLocked(connID, req)
	appended := e.appended
	e.appended = nil
	hooks := e.appendHooks
	e.mu.Unlock()

	for _, msg := range appended {
		for _, hook := range hooks {
			hook(msg)
		}
	}
	return effects, err
}

func (e *Engine) dispatchLocked(connID string, req Request) ([]Effect, error) {
	state, ok := e.conns[connID]
	if !ok {
		return nil, ErrDisconnected
	}
	if state != stateIdentified && req.EventName() != EventUserJoin {
		return nil, ErrNotIdentified
	}

	switch r := req.(type) {
	case *UserJoinRequest:
		return e.userJoin(connID, r)
	case *JoinRoomRequest:
		return e.joinRoom(connID, r)
	case *CreateRoomRequest:
		return e.createRoom(connID, r)
	case *LeaveRoomRequest:
		return e.leaveRoom(connID, r)
	case *ViewRoomRequest:
		return e.viewRoom(connID, r)
	case *SendMessageRequest:
		return e.sendMessage(connID, r)
	case *TypingRequest:
		return e.setTyping(connID, r)
	case *PrivateMessageRequest:
		return e.privateMessage(connID, r)
	case *AddReactionRequest:
		return e.addReaction(connID, r)
	case *MarkReadRequest:
		return e.markRead(connID, r)
	case *SearchMessagesRequest:
		return e.searchMessages(connID, r)
	case *LoadOlderMessagesRequest:
		return e.loadOlderMessages(connID, r)
	case *GetUnreadCountsRequest:
		return e.unreadCounts(connID), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, req.EventName())
	}
}

// Disconnect removes a connection from every room and forgets it. Calling it
// for an unknown connection is a no-op.
func (e *Engine) Disconnect(connID string) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.conns[connID]; !ok {
		return nil
	}
	user, _ := e.presence.Get(connID)

	var effects []Effect
	for _, roomID := range e.rooms.RoomsOf(connID) {
		wasTyping := e.typing.IsTyping(roomID, connID)
		e.rooms.Leave(roomID, connID)
		effects = append(effects, e.toRoom(roomID, OutUserLeft, UserLeftPayload{
			RoomID:   roomID,
			UserID:   connID,
			Username: user.Username,
		}))
		if wasTyping {
			effects = append(effects, e.typingEffect(roomID))
		}
	}
	// Typing entries for rooms the user never joined.
	for _, roomID := range e.typing.ClearUser(connID) {
		effects = append(effects, e.typingEffect(roomID))
	}

	e.unread.Forget(connID)
	e.presence.Disconnect(connID)
	delete(e.conns, connID)

	effects = append(effects, e.toAll(OutUserOffline, UserOfflinePayload{UserID: connID, Username: user.Username}))
	e.logger.Debug("connection closed", "conn", connID, "effects", len(effects))
	return effects
}

// SweepTyping expires typing entries older than the configured TTL and returns
// the resulting typing_users updates. It does nothing when the TTL is zero.
func (e *Engine) SweepTyping(now time.Time) []Effect {
	if e.cfg.TypingTTL <= 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	expired := e.typing.Sweep(now.Add(-e.cfg.TypingTTL))
	roomIDs := make([]string, 0, len(expired))
	for roomID := range expired {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)

	effects := make([]Effect, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		effects = append(effects, e.typingEffect(roomID))
	}
	return effects
}

// Restore loads archived messages into the store, creating their rooms when
// needed. It returns how many messages were loaded.
func (e *Engine) Restore(messages []domain.Message) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	restored := 0
	for _, msg := range messages {
		if _, err := e.rooms.GetOrCreateDefault(msg.RoomID); err != nil {
			continue
		}
		if e.store.Restore(msg) {
			restored++
		}
	}
	return restored
}

func (e *Engine) userJoin(connID string, r *UserJoinRequest) ([]Effect, error) {
	user, err := e.presence.SetProfile(connID, r.Username, r.Avatar)
	if err != nil {
		return nil, err
	}
	e.conns[connID] = stateIdentified

	return []Effect{
		e.unicast(connID, OutUserProfile, UserPayload{User: user}),
		e.unicast(connID, OutRoomList, RoomListPayload{Rooms: e.rooms.List()}),
		e.toAll(OutUserOnline, UserPayload{User: user}),
	}, nil
}

func (e *Engine) joinRoom(connID string, r *JoinRoomRequest) ([]Effect, error) {
	if r.Username != "" {
		if _, err := e.presence.Rename(connID, r.Username); err != nil {
			return nil, err
		}
	}
	return e.join(connID, strings.TrimSpace(r.RoomID))
}

func (e *Engine) join(connID, roomID string) ([]Effect, error) {
	room, err := e.rooms.Join(roomID, connID)
	if err != nil {
		return nil, err
	}
	if err := e.presence.SetActiveRoom(connID, room.ID); err != nil {
		return nil, err
	}
	user, _ := e.presence.Get(connID)
	page := e.store.GetPage(room.ID, "", 0)

	return []Effect{
		e.unicast(connID, OutRoomJoined, RoomJoinedPayload{
			RoomID:   room.ID,
			RoomName: room.Name,
			Members:  e.presence.ListOnline(room.ID),
			Messages: page.Messages,
			HasMore:  page.HasMore,
		}),
		e.toRoom(room.ID, OutUserJoinedRoom, RoomUserPayload{RoomID: room.ID, User: user}),
	}, nil
}

func (e *Engine) createRoom(connID string, r *CreateRoomRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)

	var effects []Effect
	room, err := e.rooms.Create(roomID, r.RoomName)
	switch {
	case errors.Is(err, ErrRoomExists):
		e.logger.Info("create_room for existing room, joining", "conn", connID, "room", roomID)
	case err != nil:
		return nil, err
	default:
		effects = append(effects, e.toAll(OutRoomCreated, RoomCreatedPayload{Room: domain.RoomSummary{
			ID:        room.ID,
			Name:      room.Name,
			CreatedAt: room.CreatedAt,
		}}))
	}

	joined, err := e.join(connID, roomID)
	if err != nil {
		return effects, err
	}
	return append(effects, joined...), nil
}

func (e *Engine) leaveRoom(connID string, r *LeaveRoomRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	if err := e.requireMember(roomID, connID); err != nil {
		return nil, err
	}
	user, _ := e.presence.Get(connID)
	wasTyping := e.typing.IsTyping(roomID, connID)

	// Members are resolved before leaving so the leaver sees its own notice.
	effects := []Effect{e.toRoom(roomID, OutUserLeftRoom, RoomUserPayload{RoomID: roomID, User: user})}
	e.rooms.Leave(roomID, connID)
	if user.ActiveRoom == roomID {
		_ = e.presence.SetActiveRoom(connID, "")
	}
	if wasTyping {
		effects = append(effects, e.typingEffect(roomID))
	}
	return effects, nil
}

func (e *Engine) viewRoom(connID string, r *ViewRoomRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	if roomID != "" {
		if err := e.requireMember(roomID, connID); err != nil {
			return nil, err
		}
	}
	return nil, e.presence.SetActiveRoom(connID, roomID)
}

func (e *Engine) sendMessage(connID string, r *SendMessageRequest) ([]Effect, error) {
	if strings.TrimSpace(r.Message) == "" {
		return nil, nil
	}
	roomID := strings.TrimSpace(r.RoomID)
	if !e.rooms.Exists(roomID) {
		return nil, fmt.Errorf("%w: send to unknown room %q", ErrState, roomID)
	}
	if !e.rooms.IsMember(roomID, connID) {
		return nil, ErrNotMember
	}

	msg, err := e.store.Append(roomID, connID, e.presence.Username(connID), r.Message)
	if err != nil {
		return nil, err
	}
	members := e.rooms.Members(roomID)
	if len(members) > 1 {
		if delivered, ok := e.store.MarkDelivered(roomID, msg.ID); ok {
			msg = delivered
		}
	}
	e.appended = append(e.appended, msg)

	wasTyping := e.typing.Remove(roomID, connID)
	effects := []Effect{e.toRoom(roomID, OutReceiveMessage, msg)}
	if wasTyping {
		effects = append(effects, e.typingEffect(roomID))
	}
	for _, u := range e.unread.OnMessageAppended(msg, members, e.presence.ActiveViewers(roomID)) {
		effects = append(effects, e.unicast(u.UserID, OutUnreadCountUpdate, UnreadCountPayload{RoomID: u.RoomID, Count: u.Count}))
	}
	return effects, nil
}

func (e *Engine) setTyping(connID string, r *TypingRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	if err := e.requireMember(roomID, connID); err != nil {
		return nil, err
	}
	e.typing.SetTyping(roomID, connID, *r.IsTyping)
	return []Effect{e.typingEffect(roomID)}, nil
}

func (e *Engine) privateMessage(connID string, r *PrivateMessageRequest) ([]Effect, error) {
	body := strings.TrimSpace(r.Message)
	if body == "" {
		return nil, nil
	}
	if _, ok := e.conns[r.To]; !ok {
		return nil, fmt.Errorf("private message to %q: %w", r.To, ErrUnknownConnection)
	}

	now := e.now()
	e.privateSeq++
	return []Effect{e.unicast(r.To, OutPrivateMessage, PrivateMessagePayload{
		ID:        fmt.Sprintf("pm_%d_%d", now.UnixMilli(), e.privateSeq),
		To:        r.To,
		From:      connID,
		Sender:    e.presence.Username(connID),
		Message:   body,
		Timestamp: now,
		IsPrivate: true,
	})}, nil
}

func (e *Engine) addReaction(connID string, r *AddReactionRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	if err := e.requireMember(roomID, connID); err != nil {
		return nil, err
	}
	msg, err := e.store.AddReaction(roomID, r.MessageID, connID, r.Reaction)
	if err != nil {
		return nil, err
	}
	return []Effect{e.toRoom(roomID, OutAddReaction, ReactionPayload{
		MessageID: msg.ID,
		RoomID:    roomID,
		Reaction:  strings.TrimSpace(r.Reaction),
		UserID:    connID,
		Reactions: msg.Reactions,
	})}, nil
}

func (e *Engine) markRead(connID string, r *MarkReadRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	if err := e.requireMember(roomID, connID); err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(r.MessageIDs))
	seen := make(map[string]struct{}, len(r.MessageIDs))
	for _, id := range r.MessageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := e.store.Get(roomID, id); err == nil {
			existing = append(existing, id)
		}
	}
	e.unread.MarkRead(connID, roomID, existing)

	return []Effect{
		e.toRoom(roomID, OutMessagesRead, MessagesReadPayload{RoomID: roomID, UserID: connID, MessageIDs: existing}),
		e.unicast(connID, OutUnreadCountUpdate, UnreadCountPayload{RoomID: roomID, Count: 0}),
	}, nil
}

func (e *Engine) searchMessages(connID string, r *SearchMessagesRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	return []Effect{e.unicast(connID, OutSearchResults, SearchResultsPayload{
		RoomID:   roomID,
		Query:    r.Query,
		Messages: e.store.Search(roomID, r.Query),
	})}, nil
}

func (e *Engine) loadOlderMessages(connID string, r *LoadOlderMessagesRequest) ([]Effect, error) {
	roomID := strings.TrimSpace(r.RoomID)
	page := e.store.GetPage(roomID, r.BeforeMessageID, r.Limit)
	return []Effect{e.unicast(connID, OutOlderMessages, OlderMessagesPayload{
		RoomID:   roomID,
		Messages: page.Messages,
		HasMore:  page.HasMore,
	})}, nil
}

func (e *Engine) unreadCounts(connID string) []Effect {
	counts := e.unread.GetCounts(connID)
	for _, roomID := range e.rooms.RoomsOf(connID) {
		if _, ok := counts[roomID]; !ok {
			counts[roomID] = 0
		}
	}
	roomIDs := make([]string, 0, len(counts))
	for roomID := range counts {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)

	effects := make([]Effect, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		effects = append(effects, e.unicast(connID, OutUnreadCountUpdate, UnreadCountPayload{RoomID: roomID, Count: counts[roomID]}))
	}
	return effects
}

func (e *Engine) requireMember(roomID, connID string) error {
	if roomID == "" {
		return ErrEmptyRoomID
	}
	if !e.rooms.Exists(roomID) {
		return fmt.Errorf("room %q: %w", roomID, ErrUnknownRoom)
	}
	if !e.rooms.IsMember(roomID, connID) {
		return ErrNotMember
	}
	return nil
}

func (e *Engine) unicast(connID, event string, payload any) Effect {
	return Effect{
		Scope:        ScopeConnection,
		ConnectionID: connID,
		Recipients:   []string{connID},
		Event:        event,
		Payload:      payload,
	}
}

func (e *Engine) toRoom(roomID, event string, payload any) Effect {
	recipients := e.rooms.Members(roomID)
	if recipients == nil {
		recipients = []string{}
	}
	return Effect{
		Scope:      ScopeRoom,
		RoomID:     roomID,
		Recipients: recipients,
		Event:      event,
		Payload:    payload,
	}
}

func (e *Engine) toAll(event string, payload any) Effect {
	recipients := make([]string, 0, len(e.conns))
	for id := range e.conns {
		recipients = append(recipients, id)
	}
	sort.Strings(recipients)
	return Effect{
		Scope:      ScopeAll,
		Recipients: recipients,
		Event:      event,
		Payload:    payload,
	}
}

func (e *Engine) typingEffect(roomID string) Effect {
	ids := e.typing.Users(roomID)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, e.presence.Username(id))
	}
	return e.toRoom(roomID, OutTypingUsers, TypingUsersPayload{RoomID: roomID, Users: names})
}

func (e *Engine) logReject(connID, event string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, ErrState) || errors.Is(err, ErrNotFound) {
		level = slog.LevelInfo
	}
	e.logger.Log(context.Background(), level, "event rejected",
		"event", event,
		"conn", connID,
		"class", errorClass(err),
		"error", err,
	)
}

// ListRooms returns every room summary.
func (e *Engine) ListRooms() []domain.RoomSummary {
	return e.rooms.List()
}

// GetRoom returns a room snapshot.
func (e *Engine) GetRoom(roomID string) (domain.Room, bool) {
	return e.rooms.Get(roomID)
}

// ListUsers returns online users, optionally only members of roomID.
func (e *Engine) ListUsers(roomID string) []domain.User {
	return e.presence.ListOnline(roomID)
}

// GetMessages returns one page of a room's history.
func (e *Engine) GetMessages(roomID, beforeID string, limit int) (domain.Page, error) {
	if !e.rooms.Exists(roomID) {
		return domain.Page{Messages: []domain.Message{}}, fmt.Errorf("room %q: %w", roomID, ErrUnknownRoom)
	}
	return e.store.GetPage(roomID, beforeID, limit), nil
}

// SearchMessages searches a room's history.
func (e *Engine) SearchMessages(roomID, query string) ([]domain.Message, error) {
	if !e.rooms.Exists(roomID) {
		return []domain.Message{}, fmt.Errorf("room %q: %w", roomID, ErrUnknownRoom)
	}
	return e.store.Search(roomID, query), nil
}

// UnreadCount returns the unread count of a user in a room.
func (e *Engine) UnreadCount(userID, roomID string) int {
	return e.unread.Count(userID, roomID)
}

// TypingUsers returns the ids of users typing in a room.
func (e *Engine) TypingUsers(roomID string) []string {
	return e.typing.Users(roomID)
}

// Stats returns current engine sizes.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{Connections: len(e.conns), Rooms: len(e.rooms.List())}
	for _, state := range e.conns {
		if state == stateIdentified {
			stats.Identified++
		}
	}
	return stats
}
