package chat

import (
	"context"
	"math"
	"slices"

	"careportal/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Page is one page of conversation history in chronological order.
type Page struct {
	Messages []model.MessageView `json:"messages"`
	Page     int                 `json:"page"`
	Limit    int                 `json:"limit"`
	HasMore  bool                `json:"hasMore"`
}

// History returns page (1-based) of a conversation's messages. Pages count
// back from the newest message; messages inside a page are oldest first.
func (s *Service) History(ctx context.Context, user model.User, conversationID string, page, limit int) (Page, error) {
	if _, err := s.requireParticipant(ctx, conversationID, user.ID); err != nil {
		return Page{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	// 範囲外のページは空。オフセットの桁あふれも防ぐ
	if page-1 > math.MaxInt32/limit {
		return Page{Messages: []model.MessageView{}, Page: page, Limit: limit}, nil
	}

	msgs, err := s.store.ListMessages(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, persistence("list messages", err)
	}
	slices.Reverse(msgs)

	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if !slices.Contains(senders, m.SenderID) {
			senders = append(senders, m.SenderID)
		}
	}
	profiles, err := s.profiles.Summaries(ctx, senders)
	if err != nil {
		return Page{}, persistence("load senders", err)
	}

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, model.MessageView{Message: m, Sender: summaryOf(profiles, m.SenderID)})
	}
	return Page{Messages: views, Page: page, Limit: limit, HasMore: len(msgs) == limit}, nil
}
