package chat

import (
	"context"
	"sync"
	"time"

	"careportal/internal/protocol"
	"careportal/internal/realtime"
)

// StartTyping relays a typing notice to the rest of the room.
func (s *Service) StartTyping(ctx context.Context, a Actor, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, a.User.ID); err != nil {
		s.emit(a, protocol.Error{Error: ClientMessage(err, "Failed to update typing status")})
		return err
	}

	s.broadcast(realtime.ConversationRoom(conversationID), protocol.UserTyping(presence(a.User, conversationID)), a.User.ID)

	if s.typing != nil {
		s.typing.arm(a.Peer.SessionID(), conversationID, func() {
			s.broadcast(realtime.ConversationRoom(conversationID),
				protocol.UserStoppedTyping(presence(a.User, conversationID)), a.User.ID)
		})
	}
	return nil
}

// StopTyping relays the end of a typing notice.
func (s *Service) StopTyping(ctx context.Context, a Actor, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, a.User.ID); err != nil {
		s.emit(a, protocol.Error{Error: ClientMessage(err, "Failed to update typing status")})
		return err
	}
	if s.typing != nil {
		s.typing.disarm(a.Peer.SessionID(), conversationID)
	}
	s.broadcast(realtime.ConversationRoom(conversationID),
		protocol.UserStoppedTyping(presence(a.User, conversationID)), a.User.ID)
	return nil
}

// stopTyping clears a pending expiry and, if one was pending, relays the stop.
// Without a typing timeout there is no state, so it does nothing.
func (s *Service) stopTyping(a Actor, conversationID string) {
	if s.typing == nil || !s.typing.disarm(a.Peer.SessionID(), conversationID) {
		return
	}
	s.broadcast(realtime.ConversationRoom(conversationID),
		protocol.UserStoppedTyping(presence(a.User, conversationID)), a.User.ID)
}

// Disconnect releases per-session state once the actor's session is gone.
func (s *Service) Disconnect(a Actor) {
	if s.typing == nil {
		return
	}
	for _, conversationID := range s.typing.drop(a.Peer.SessionID()) {
		s.broadcast(realtime.ConversationRoom(conversationID),
			protocol.UserStoppedTyping(presence(a.User, conversationID)), a.User.ID)
	}
}

// typingTracker expires typing notices a client never stopped.
type typingTracker struct {
	timeout time.Duration

	mu     sync.Mutex
	timers map[string]map[string]*time.Timer // sessionID -> conversationID -> timer
}

func newTypingTracker(timeout time.Duration) *typingTracker {
	return &typingTracker{timeout: timeout, timers: make(map[string]map[string]*time.Timer)}
}

// arm (re)starts the expiry for one session in one conversation.
func (t *typingTracker) arm(sessionID, conversationID string, expire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	convs := t.timers[sessionID]
	if convs == nil {
		convs = make(map[string]*time.Timer)
		t.timers[sessionID] = convs
	}
	if old, ok := convs[conversationID]; ok {
		old.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		current := t.timers[sessionID][conversationID] == timer
		if current {
			t.removeLocked(sessionID, conversationID)
		}
		t.mu.Unlock()
		if current {
			expire()
		}
	})
	convs[conversationID] = timer
}

// disarm cancels a pending expiry and reports whether one existed.
func (t *typingTracker) disarm(sessionID, conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[sessionID][conversationID]
	if !ok {
		return false
	}
	timer.Stop()
	t.removeLocked(sessionID, conversationID)
	return true
}

// drop cancels every expiry of a session and returns their conversations.
func (t *typingTracker) drop(sessionID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	convs := t.timers[sessionID]
	ids := make([]string, 0, len(convs))
	for id, timer := range convs {
		timer.Stop()
		ids = append(ids, id)
	}
	delete(t.timers, sessionID)
	return ids
}

func (t *typingTracker) removeLocked(sessionID, conversationID string) {
	delete(t.timers[sessionID], conversationID)
	if len(t.timers[sessionID]) == 0 {
		delete(t.timers, sessionID)
	}
}
