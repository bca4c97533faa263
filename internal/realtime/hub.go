// Package realtime tracks live sessions, the rooms they are subscribed to,
// and fans out frames to rooms.
package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"careportal/internal/protocol"
)

// Peer is one live connection as the hub sees it.
type Peer interface {
	SessionID() string
	UserID() string
	Send(payload []byte) error
}

// Emit encodes ev and queues it on p alone.
func Emit(p Peer, ev protocol.Event) error {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return p.Send(payload)
}

// UserRoom is the personal channel of a user.
func UserRoom(userID string) string { return "user:" + userID }

// ConversationRoom is the broadcast room of a conversation.
func ConversationRoom(conversationID string) string { return "conversation:" + conversationID }

type envelope struct {
	room       string
	payload    []byte
	exceptUser string
}

// Hub owns presence: which sessions are attached and which rooms each is in.
// All bookkeeping sits under one RWMutex; deliveries happen on the Run
// goroutine from a snapshot so slow peers never hold the lock.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]Peer                // sessionID -> peer
	rooms        map[string]map[string]Peer     // room -> sessionID -> peer
	sessionRooms map[string]map[string]struct{} // sessionID -> rooms

	broadcast chan envelope
	done      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// NewHub creates a Hub. Run must be started for broadcasts to be delivered.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		sessions:     make(map[string]Peer),
		rooms:        make(map[string]map[string]Peer),
		sessionRooms: make(map[string]map[string]struct{}),
		// バッファ化してハンドラーのブロッキングを回避
		broadcast: make(chan envelope, 256),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Attach registers p and subscribes it to its user's personal channel.
func (h *Hub) Attach(p Peer) {
	h.mu.Lock()
	h.sessions[p.SessionID()] = p
	h.sessionRooms[p.SessionID()] = make(map[string]struct{})
	h.joinLocked(UserRoom(p.UserID()), p)
	total := len(h.sessions)
	h.mu.Unlock()

	h.log.Info().Str("session_id", p.SessionID()).Str("user_id", p.UserID()).Int("sessions", total).
		Msg("[WebSocket] session attached")
}

// Detach removes p from every room and forgets it.
func (h *Hub) Detach(p Peer) {
	h.mu.Lock()
	for room := range h.sessionRooms[p.SessionID()] {
		h.leaveLocked(room, p.SessionID())
	}
	delete(h.sessionRooms, p.SessionID())
	delete(h.sessions, p.SessionID())
	remaining := len(h.sessions)
	h.mu.Unlock()

	h.log.Info().Str("session_id", p.SessionID()).Str("user_id", p.UserID()).Int("sessions", remaining).
		Msg("[WebSocket] session detached")
}

// Join subscribes an attached peer to room. Unattached peers are ignored.
func (h *Hub) Join(room string, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[p.SessionID()]; !ok {
		return
	}
	h.joinLocked(room, p)
}

// Leave unsubscribes p from room.
func (h *Hub) Leave(room string, p Peer) {
	h.mu.Lock()
	h.leaveLocked(room, p.SessionID())
	h.mu.Unlock()
}

// Rooms returns the rooms p is subscribed to.
func (h *Hub) Rooms(p Peer) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.sessionRooms[p.SessionID()]))
	for room := range h.sessionRooms[p.SessionID()] {
		rooms = append(rooms, room)
	}
	return rooms
}

// InRoom reports whether p is subscribed to room.
func (h *Hub) InRoom(room string, p Peer) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][p.SessionID()]
	return ok
}

// Online reports whether userID has at least one attached session.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[UserRoom(userID)]) > 0
}

// Broadcast queues ev for every session in room, skipping the sessions of
// exceptUser when it is non-empty. It does not wait for delivery.
func (h *Hub) Broadcast(room string, ev protocol.Event, exceptUser string) error {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- envelope{room: room, payload: payload, exceptUser: exceptUser}:
	case <-h.done:
	}
	return nil
}

// Run delivers queued broadcasts until ctx is done or the hub is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) deliver(env envelope) {
	// ルームをスナップショットしてからロックを外して送信する
	h.mu.RLock()
	peers := make([]Peer, 0, len(h.rooms[env.room]))
	for _, p := range h.rooms[env.room] {
		if env.exceptUser != "" && p.UserID() == env.exceptUser {
			continue
		}
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(env.payload); err != nil {
			h.log.Debug().Err(err).Str("session_id", p.SessionID()).Str("room", env.room).
				Msg("[WebSocket] delivery dropped")
		}
	}
}

// Close stops Run and closes every attached session that supports closing.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	peers := make([]Peer, 0, len(h.sessions))
	for _, p := range h.sessions {
		peers = append(peers, p)
	}
	h.sessions = make(map[string]Peer)
	h.rooms = make(map[string]map[string]Peer)
	h.sessionRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, p := range peers {
		if s, ok := p.(*Session); ok {
			s.Close(1001, "server shutdown")
		}
	}
}

func (h *Hub) joinLocked(room string, p Peer) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]Peer)
		h.rooms[room] = members
	}
	members[p.SessionID()] = p

	memberships := h.sessionRooms[p.SessionID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		h.sessionRooms[p.SessionID()] = memberships
	}
	memberships[room] = struct{}{}
}

func (h *Hub) leaveLocked(room, sessionID string) {
	if members := h.rooms[room]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, room)
	}
}
