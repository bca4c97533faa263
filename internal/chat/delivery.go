package chat

import (
	"context"
	"errors"
	"strings"

	"careportal/internal/model"
	"careportal/internal/protocol"
	"careportal/internal/realtime"
	"careportal/internal/store"
)

// Draft is a message as submitted by a client.
type Draft struct {
	ConversationID string
	Content        string
	MessageType    string
}

// Send persists a message from sender and fans it out to the room.
// The message row and the conversation summary are written in one
// transaction; nothing is broadcast unless that commit succeeded.
func (s *Service) Send(ctx context.Context, sender model.User, d Draft) (model.MessageView, error) {
	conv, err := s.requireParticipant(ctx, d.ConversationID, sender.ID)
	if err != nil {
		return model.MessageView{}, err
	}

	content := strings.TrimSpace(d.Content)
	if content == "" {
		return model.MessageView{}, ErrEmptyContent
	}
	msgType := strings.TrimSpace(d.MessageType)
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	msg, err := s.store.CreateMessage(ctx, model.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		MessageType:    msgType,
	})
	if errors.Is(err, store.ErrNotFound) {
		return model.MessageView{}, ErrConversationNotFound
	}
	if err != nil {
		return model.MessageView{}, persistence("create message", err)
	}

	view := model.MessageView{Message: msg, Sender: sender.Summary()}

	s.broadcast(realtime.ConversationRoom(conv.ID), protocol.NewMessage{Message: view, ConversationID: conv.ID}, "")

	conv.LastMessageID = &msg.ID
	conv.LastMessageTime = &msg.CreatedAt
	for _, p := range conv.Participants {
		s.broadcast(realtime.UserRoom(p), protocol.ConversationUpdated{Conversation: conv}, "")
	}

	s.log.Info().Str("message_id", msg.ID).Str("conversation_id", conv.ID).Str("sender_id", sender.ID).
		Msg("✅ message delivered")
	return view, nil
}

// SendFrom runs Send for a realtime actor and answers on their session:
// message-sent on success, message-error otherwise.
func (s *Service) SendFrom(ctx context.Context, a Actor, d Draft) {
	view, err := s.Send(ctx, a.User, d)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			s.log.Error().Err(err).Str("conversation_id", d.ConversationID).Str("user_id", a.User.ID).
				Msg("❌ send message failed")
		}
		s.emit(a, protocol.MessageError{Error: ClientMessage(err, "Failed to send message")})
		return
	}
	s.stopTyping(a, d.ConversationID)
	s.emit(a, protocol.MessageSent{Success: true, Message: view})
}
