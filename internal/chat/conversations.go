package chat

import (
	"context"
	"errors"
	"slices"
	"strings"

	"careportal/internal/model"
	"careportal/internal/store"
)

// ResolveDirect returns the direct conversation between requester and
// targetID, creating it on first contact. Concurrent first contacts
// converge on the same conversation.
func (s *Service) ResolveDirect(ctx context.Context, requester model.User, targetID string) (model.ConversationView, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == requester.ID {
		return model.ConversationView{}, ErrSelfConversation
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return model.ConversationView{}, err
	}

	conv, err := s.store.FindDirectConversation(ctx, requester.ID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		conv, err = s.store.CreateDirectConversation(ctx, requester.ID, targetID)
		if errors.Is(err, store.ErrDuplicate) {
			// 同時作成に負けた側は勝者の会話を読み直す
			conv, err = s.store.FindDirectConversation(ctx, requester.ID, targetID)
		} else if err == nil {
			s.log.Info().Str("conversation_id", conv.ID).Str("user_id", requester.ID).Str("target_id", targetID).
				Msg("✅ direct conversation created")
		}
	}
	if err != nil {
		return model.ConversationView{}, persistence("resolve direct conversation", err)
	}
	return s.view(ctx, conv)
}

// CreateGroup starts a group conversation between creator and others.
func (s *Service) CreateGroup(ctx context.Context, creator model.User, others []string) (model.ConversationView, error) {
	participants := []string{creator.ID}
	for _, id := range others {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(participants, id) {
			continue
		}
		if err := s.requireUser(ctx, id); err != nil {
			return model.ConversationView{}, err
		}
		participants = append(participants, id)
	}
	if len(participants) < 3 {
		return model.ConversationView{}, ErrInvalidGroup
	}

	conv, err := s.store.CreateGroupConversation(ctx, participants)
	if err != nil {
		return model.ConversationView{}, persistence("create group conversation", err)
	}
	s.log.Info().Str("conversation_id", conv.ID).Int("participants", len(participants)).
		Msg("✅ group conversation created")
	return s.view(ctx, conv)
}

// Conversations lists the user's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, user model.User) ([]model.ConversationView, error) {
	convs, err := s.store.ListConversations(ctx, user.ID)
	if err != nil {
		return nil, persistence("list conversations", err)
	}
	views := make([]model.ConversationView, 0, len(convs))
	for _, c := range convs {
		v, err := s.view(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Conversation returns one conversation the user participates in.
func (s *Service) Conversation(ctx context.Context, user model.User, conversationID string) (model.ConversationView, error) {
	conv, err := s.requireParticipant(ctx, conversationID, user.ID)
	if err != nil {
		return model.ConversationView{}, err
	}
	return s.view(ctx, conv)
}

func (s *Service) requireUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrUserNotFound
	}
	_, err := s.profiles.Summary(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return persistence("load user", err)
	}
	return nil
}

func (s *Service) view(ctx context.Context, c model.Conversation) (model.ConversationView, error) {
	profiles, err := s.profiles.Summaries(ctx, c.Participants)
	if err != nil {
		return model.ConversationView{}, persistence("load participants", err)
	}
	v := model.ConversationView{Conversation: c, ParticipantProfiles: profiles}

	if c.LastMessageID != nil {
		msg, err := s.store.GetMessage(ctx, *c.LastMessageID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return model.ConversationView{}, persistence("load last message", err)
		default:
			last := model.MessageView{Message: msg, Sender: summaryOf(profiles, msg.SenderID)}
			v.LastMessage = &last
		}
	}
	return v, nil
}

func summaryOf(profiles []model.UserSummary, id string) model.UserSummary {
	for _, p := range profiles {
		if p.ID == id {
			return p
		}
	}
	return model.UserSummary{ID: id}
}
