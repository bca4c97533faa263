// Package protocol defines the realtime wire format. Every frame is
//
//	{"event": "<name>", "data": {...}}
//
// and every event name maps to exactly one Go type. Client events implement
// Inbound, which can only be satisfied inside this package, so a type switch
// over Decode's result covers the whole client vocabulary.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return nil
	}
	return json.Unmarshal(f.Data, v)
}

// Event is any value that can be sent as a frame.
type Event interface {
	EventName() string
}

// Inbound is a client-to-server event.
type Inbound interface {
	Event
	validate() error
}

// Encode wraps ev in a frame.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Frame{Event: ev.EventName(), Data: data})
}

// Decode parses and validates a client frame.
func Decode(raw []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}

	ev, err := newInbound(f.Event)
	if err != nil {
		return nil, err
	}
	if err := f.Decode(ev); err != nil {
		return nil, &PayloadError{Event: f.Event, Err: err}
	}
	if err := ev.validate(); err != nil {
		return nil, &PayloadError{Event: f.Event, Err: err}
	}
	return deref(ev), nil
}

// PayloadError is a known client event whose data did not decode or validate.
// It matches ErrInvalidPayload.
type PayloadError struct {
	Event string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrInvalidPayload, e.Event, e.Err)
}

func (e *PayloadError) Unwrap() []error { return []error{ErrInvalidPayload, e.Err} }

// Rejection builds the error event a client expects in answer to a failed
// event: join-error, leave-error and message-error for the events that have
// one, and the generic error otherwise.
func Rejection(event, msg string) Event {
	switch event {
	case EventJoinConversation:
		return JoinError{Error: msg}
	case EventLeaveConversation:
		return LeaveError{Error: msg}
	case EventSendMessage:
		return MessageError{Error: msg}
	}
	return Error{Error: msg}
}

func newInbound(name string) (Inbound, error) {
	switch name {
	case EventJoinConversations:
		return &JoinConversations{}, nil
	case EventJoinConversation:
		return &JoinConversation{}, nil
	case EventLeaveConversation:
		return &LeaveConversation{}, nil
	case EventSendMessage:
		return &SendMessage{}, nil
	case EventTypingStart:
		return &TypingStart{}, nil
	case EventTypingStop:
		return &TypingStop{}, nil
	case EventMarkMessagesRead:
		return &MarkMessagesRead{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// deref hands out values so handlers switch on value types.
func deref(ev Inbound) Inbound {
	switch e := ev.(type) {
	case *JoinConversations:
		return *e
	case *JoinConversation:
		return *e
	case *LeaveConversation:
		return *e
	case *SendMessage:
		return *e
	case *TypingStart:
		return *e
	case *TypingStop:
		return *e
	case *MarkMessagesRead:
		return *e
	}
	return ev
}

func requireConversationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("conversationId is required")
	}
	return nil
}
