package chat

import (
	"context"

	"careportal/internal/protocol"
	"careportal/internal/realtime"
)

// MarkRead records a receipt for the actor on every message in the
// conversation they did not send and have not read yet, then tells the
// rest of the room. The actor gets no acknowledgement.
func (s *Service) MarkRead(ctx context.Context, a Actor, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, a.User.ID); err != nil {
		s.emit(a, protocol.Error{Error: ClientMessage(err, "Failed to mark messages as read")})
		return err
	}

	n, err := s.store.MarkRead(ctx, conversationID, a.User.ID)
	if err != nil {
		err = persistence("mark read", err)
		s.log.Error().Err(err).Str("conversation_id", conversationID).Str("user_id", a.User.ID).
			Msg("❌ mark messages read failed")
		s.emit(a, protocol.Error{Error: ClientMessage(err, "Failed to mark messages as read")})
		return err
	}

	s.log.Debug().Int64("receipts", n).Str("conversation_id", conversationID).Str("user_id", a.User.ID).
		Msg("messages marked read")
	s.broadcast(realtime.ConversationRoom(conversationID),
		protocol.MessagesRead{ConversationID: conversationID, ReadBy: a.User.ID}, a.User.ID)
	return nil
}
