package model

import (
	"slices"
	"time"
)

// ConversationType distinguishes 1:1 from multi-party conversations.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation is a room of participants with a summary of its latest message.
type Conversation struct {
	ID              string           `json:"id"`
	Type            ConversationType `json:"type"`
	Participants    []string         `json:"participants"`
	LastMessageID   *string          `json:"lastMessageId,omitempty"`
	LastMessageTime *time.Time       `json:"lastMessageTime,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// HasParticipant is the single access-control predicate for rooms.
func (c Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// DirectKey returns the normalised key of an unordered participant pair.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// ConversationView is a conversation with participant display fields and the
// latest message resolved.
type ConversationView struct {
	Conversation
	ParticipantProfiles []UserSummary `json:"participantProfiles"`
	LastMessage         *MessageView  `json:"lastMessage,omitempty"`
}
