package chat

import (
	"context"
	"errors"

	"careportal/internal/protocol"
)

// Dispatch routes one decoded client event. A panic while handling it is
// logged and reported to the actor; the session stays up.
func (s *Service) Dispatch(ctx context.Context, a Actor, ev protocol.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("event", ev.EventName()).Str("user_id", a.User.ID).
				Msg("❌ event handler panicked")
			s.emit(a, protocol.Error{Error: "Internal server error"})
		}
	}()

	var err error
	switch e := ev.(type) {
	case protocol.JoinConversations:
		if _, err = s.JoinAll(ctx, a); err != nil {
			s.emit(a, protocol.Error{Error: "Failed to join conversations"})
		}
	case protocol.JoinConversation:
		err = s.Join(ctx, a, e.ConversationID)
	case protocol.LeaveConversation:
		err = s.Leave(ctx, a, e.ConversationID)
	case protocol.SendMessage:
		s.SendFrom(ctx, a, Draft{ConversationID: e.ConversationID, Content: e.Content, MessageType: e.MessageType})
	case protocol.TypingStart:
		err = s.StartTyping(ctx, a, e.ConversationID)
	case protocol.TypingStop:
		err = s.StopTyping(ctx, a, e.ConversationID)
	case protocol.MarkMessagesRead:
		err = s.MarkRead(ctx, a, e.ConversationID)
	default:
		s.emit(a, protocol.Error{Error: "Unsupported event"})
		return
	}

	if err != nil {
		logEv := s.log.Warn()
		if errors.Is(err, ErrPersistence) {
			logEv = s.log.Error()
		}
		logEv.Err(err).Str("event", ev.EventName()).Str("user_id", a.User.ID).Msg("event rejected")
	}
}
