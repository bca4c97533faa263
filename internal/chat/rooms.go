package chat

import (
	"context"

	"careportal/internal/protocol"
	"careportal/internal/realtime"
)

// JoinAll subscribes the actor to every conversation they participate in
// and acknowledges with the number joined.
func (s *Service) JoinAll(ctx context.Context, a Actor) (int, error) {
	ids, err := s.store.ConversationIDs(ctx, a.User.ID)
	if err != nil {
		return 0, persistence("list conversation ids", err)
	}
	for _, id := range ids {
		s.rooms.Join(realtime.ConversationRoom(id), a.Peer)
	}
	s.emit(a, protocol.ConversationsJoined{Success: true, Count: len(ids)})
	return len(ids), nil
}

// Join subscribes the actor to one conversation room and tells the other
// members. Non-participants get a join-error and are not subscribed.
func (s *Service) Join(ctx context.Context, a Actor, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, a.User.ID); err != nil {
		s.emit(a, protocol.JoinError{Error: ClientMessage(err, "Failed to join conversation")})
		return err
	}

	room := realtime.ConversationRoom(conversationID)
	s.rooms.Join(room, a.Peer)
	s.emit(a, protocol.ConversationJoined{Success: true, ConversationID: conversationID})
	s.broadcast(room, protocol.UserJoinedConversation(presence(a.User, conversationID)), a.User.ID)
	return nil
}

// Leave unsubscribes the actor from a conversation room.
func (s *Service) Leave(ctx context.Context, a Actor, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, a.User.ID); err != nil {
		s.emit(a, protocol.LeaveError{Error: ClientMessage(err, "Failed to leave conversation")})
		return err
	}

	room := realtime.ConversationRoom(conversationID)
	s.rooms.Leave(room, a.Peer)
	s.stopTyping(a, conversationID)
	s.emit(a, protocol.ConversationLeft{Success: true, ConversationID: conversationID})
	s.broadcast(room, protocol.UserLeftConversation(presence(a.User, conversationID)), a.User.ID)
	return nil
}
