// Package chat is the messaging core: room membership, message delivery,
// typing relay, read receipts and direct conversation resolution.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"careportal/internal/model"
	"careportal/internal/protocol"
	"careportal/internal/realtime"
	"careportal/internal/store"
)

// Store is the durable state the core reads and writes.
type Store interface {
	GetConversation(ctx context.Context, id string) (model.Conversation, error)
	ConversationIDs(ctx context.Context, userID string) ([]string, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b string) (model.Conversation, error)
	CreateDirectConversation(ctx context.Context, a, b string) (model.Conversation, error)
	CreateGroupConversation(ctx context.Context, participants []string) (model.Conversation, error)
	CreateMessage(ctx context.Context, m model.Message) (model.Message, error)
	GetMessage(ctx context.Context, id string) (model.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) (int64, error)
}

// Profiles resolves user display fields.
type Profiles interface {
	Summary(ctx context.Context, id string) (model.UserSummary, error)
	Summaries(ctx context.Context, ids []string) ([]model.UserSummary, error)
}

// Rooms is the presence layer the core subscribes sessions through.
type Rooms interface {
	Join(room string, p realtime.Peer)
	Leave(room string, p realtime.Peer)
	Broadcast(room string, ev protocol.Event, exceptUser string) error
}

// Actor is the authenticated session an event arrived on.
type Actor struct {
	Peer realtime.Peer
	User model.User
}

// Service implements the messaging core over a store, a profile directory and a hub.
type Service struct {
	store    Store
	profiles Profiles
	rooms    Rooms
	typing   *typingTracker
	log      zerolog.Logger
}

// Options tunes optional behaviour of the Service.
type Options struct {
	// TypingTimeout, when positive, relays a stop on behalf of a client
	// that started typing and went quiet for this long.
	TypingTimeout time.Duration
}

// NewService creates the messaging core.
func NewService(st Store, profiles Profiles, rooms Rooms, opts Options, log zerolog.Logger) *Service {
	s := &Service{
		store:    st,
		profiles: profiles,
		rooms:    rooms,
		log:      log,
	}
	if opts.TypingTimeout > 0 {
		s.typing = newTypingTracker(opts.TypingTimeout)
	}
	return s
}

// requireParticipant loads the conversation and checks that userID belongs to it.
// Every room-scoped operation goes through here.
func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) (model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return model.Conversation{}, persistence("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return model.Conversation{}, ErrAccessDenied
	}
	return conv, nil
}

func (s *Service) emit(a Actor, ev protocol.Event) {
	if err := realtime.Emit(a.Peer, ev); err != nil {
		s.log.Debug().Err(err).Str("event", ev.EventName()).Str("user_id", a.User.ID).Msg("emit failed")
	}
}

func (s *Service) broadcast(room string, ev protocol.Event, exceptUser string) {
	if err := s.rooms.Broadcast(room, ev, exceptUser); err != nil {
		s.log.Error().Err(err).Str("event", ev.EventName()).Str("room", room).Msg("broadcast failed")
	}
}

func presence(u model.User, conversationID string) protocol.Presence {
	return protocol.Presence{UserID: u.ID, UserName: u.Name, ConversationID: conversationID}
}
