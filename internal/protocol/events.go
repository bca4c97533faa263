package protocol

import "careportal/internal/model"

// Client to server.
const (
	EventJoinConversations = "join-conversations"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"
	EventMarkMessagesRead  = "mark-messages-read"
)

// Server to client.
const (
	EventConnected              = "connected"
	EventConversationsJoined    = "conversations-joined"
	EventConversationJoined     = "conversation-joined"
	EventJoinError              = "join-error"
	EventConversationLeft       = "conversation-left"
	EventLeaveError             = "leave-error"
	EventUserJoinedConversation = "user-joined-conversation"
	EventUserLeftConversation   = "user-left-conversation"
	EventNewMessage             = "new-message"
	EventMessageSent            = "message-sent"
	EventMessageError           = "message-error"
	EventUserTyping             = "user-typing"
	EventUserStoppedTyping      = "user-stopped-typing"
	EventMessagesRead           = "messages-read"
	EventConversationUpdated    = "conversation-updated"
	EventError                  = "error"
)

// JoinConversations subscribes the session to every conversation of its user.
type JoinConversations struct{}

func (JoinConversations) EventName() string { return EventJoinConversations }
func (JoinConversations) validate() error   { return nil }

// JoinConversation subscribes the session to one conversation room.
type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

func (JoinConversation) EventName() string { return EventJoinConversation }
func (e JoinConversation) validate() error { return requireConversationID(e.ConversationID) }

// LeaveConversation unsubscribes the session from a conversation room.
type LeaveConversation struct {
	ConversationID string `json:"conversationId"`
}

func (LeaveConversation) EventName() string { return EventLeaveConversation }
func (e LeaveConversation) validate() error { return requireConversationID(e.ConversationID) }

// SendMessage carries raw client content; trimming and the empty check
// belong to the delivery pipeline.
type SendMessage struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType,omitempty"`
}

func (SendMessage) EventName() string { return EventSendMessage }
func (e SendMessage) validate() error { return requireConversationID(e.ConversationID) }

// TypingStart tells the room the user started typing.
type TypingStart struct {
	ConversationID string `json:"conversationId"`
}

func (TypingStart) EventName() string { return EventTypingStart }
func (e TypingStart) validate() error { return requireConversationID(e.ConversationID) }

// TypingStop tells the room the user stopped typing.
type TypingStop struct {
	ConversationID string `json:"conversationId"`
}

func (TypingStop) EventName() string { return EventTypingStop }
func (e TypingStop) validate() error { return requireConversationID(e.ConversationID) }

// MarkMessagesRead records receipts for everything others sent in a conversation.
type MarkMessagesRead struct {
	ConversationID string `json:"conversationId"`
}

func (MarkMessagesRead) EventName() string { return EventMarkMessagesRead }
func (e MarkMessagesRead) validate() error { return requireConversationID(e.ConversationID) }

// Connected greets a freshly authenticated session.
type Connected struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func (Connected) EventName() string { return EventConnected }

// ConversationsJoined acknowledges JoinConversations with the room count.
type ConversationsJoined struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

func (ConversationsJoined) EventName() string { return EventConversationsJoined }

// ConversationJoined acknowledges JoinConversation.
type ConversationJoined struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId"`
}

func (ConversationJoined) EventName() string { return EventConversationJoined }

// JoinError rejects a JoinConversation.
type JoinError struct {
	Error string `json:"error"`
}

func (JoinError) EventName() string { return EventJoinError }

// ConversationLeft acknowledges LeaveConversation.
type ConversationLeft struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId"`
}

func (ConversationLeft) EventName() string { return EventConversationLeft }

// LeaveError rejects a LeaveConversation.
type LeaveError struct {
	Error string `json:"error"`
}

func (LeaveError) EventName() string { return EventLeaveError }

// Presence is the payload of room presence and typing notices.
type Presence struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	ConversationID string `json:"conversationId"`
}

// UserJoinedConversation tells a room that someone joined it.
type UserJoinedConversation Presence

func (UserJoinedConversation) EventName() string { return EventUserJoinedConversation }

// UserLeftConversation tells a room that someone left it.
type UserLeftConversation Presence

func (UserLeftConversation) EventName() string { return EventUserLeftConversation }

// UserTyping relays TypingStart to the rest of the room.
type UserTyping Presence

func (UserTyping) EventName() string { return EventUserTyping }

// UserStoppedTyping relays TypingStop, or its expiry, to the rest of the room.
type UserStoppedTyping Presence

func (UserStoppedTyping) EventName() string { return EventUserStoppedTyping }

// NewMessage fans a stored message out to its conversation room.
type NewMessage struct {
	Message        model.MessageView `json:"message"`
	ConversationID string            `json:"conversationId"`
}

func (NewMessage) EventName() string { return EventNewMessage }

// MessageSent acknowledges SendMessage to the sender.
type MessageSent struct {
	Success bool              `json:"success"`
	Message model.MessageView `json:"message"`
}

func (MessageSent) EventName() string { return EventMessageSent }

// MessageError rejects a SendMessage.
type MessageError struct {
	Error string `json:"error"`
}

func (MessageError) EventName() string { return EventMessageError }

// MessagesRead tells a room that ReadBy caught up on the conversation.
type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

func (MessagesRead) EventName() string { return EventMessagesRead }

// ConversationUpdated carries a conversation whose last message changed.
type ConversationUpdated struct {
	Conversation model.Conversation `json:"conversation"`
}

func (ConversationUpdated) EventName() string { return EventConversationUpdated }

// Error reports a failure that has no event-specific error type.
type Error struct {
	Error string `json:"error"`
}

func (Error) EventName() string { return EventError }
