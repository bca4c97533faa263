package model

import "time"

// MessageTypeText is the default message type.
const MessageTypeText = "text"

// ReadReceipt records that a user has seen a message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message represents a chat message
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content"`
	MessageType    string        `json:"messageType"`
	CreatedAt      time.Time     `json:"createdAt"`
	ReadBy         []ReadReceipt `json:"readBy"`
}

// ReadByUser reports whether userID already has a receipt on the message.
func (m Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MessageView is a message with the sender's display fields resolved,
// as delivered to clients.
type MessageView struct {
	Message
	Sender UserSummary `json:"sender"`
}
