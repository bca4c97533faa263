package chat

import (
	"errors"
	"fmt"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrAccessDenied         = errors.New("chat: user is not a participant in the conversation")
	ErrEmptyContent         = errors.New("chat: message content is empty")
	ErrSelfConversation     = errors.New("chat: cannot converse with yourself")
	ErrUserNotFound         = errors.New("chat: user not found")
	ErrInvalidGroup         = errors.New("chat: a group needs at least two other participants")
	// ErrPersistence wraps every store failure inside the chat core.
	ErrPersistence = errors.New("chat: persistence error")
)

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// ClientMessage renders err as the text sent to the acting client.
// Unexpected errors collapse to fallback so internals never leak.
func ClientMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, ErrAccessDenied):
		return "Access denied"
	case errors.Is(err, ErrEmptyContent):
		return "Message content is required"
	case errors.Is(err, ErrSelfConversation):
		return "Cannot create conversation with yourself"
	case errors.Is(err, ErrUserNotFound):
		return "User not found"
	case errors.Is(err, ErrInvalidGroup):
		return "A group conversation needs at least two other participants"
	}
	return fallback
}
