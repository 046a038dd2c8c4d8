package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidEvent = errors.New("invalid webhook event")

// Event is the payload the gateway delivers to a bot's webhook.
type Event struct {
	UserID      string       `json:"userId"`
	InstanceID  string       `json:"instanceId,omitempty"`
	UserMessage *UserMessage `json:"userMessage,omitempty"`
}

// UserMessage is a message a user sent to the bot.
type UserMessage struct {
	MessageID   string              `json:"messageId,omitempty"`
	MessageType string              `json:"messageType,omitempty"`
	Content     *UserContentMessage `json:"content,omitempty"`
}

type UserContentMessage struct {
	ContentType string `json:"contentType,omitempty"`
	Text        string `json:"text,omitempty"`
	// Context echoes the context of the suggestion the user tapped, if any.
	Context string `json:"context,omitempty"`
}

// ParseEvent decodes a webhook body. It should only be called on a body whose
// signature has already been verified.
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(evt.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidEvent)
	}
	return &evt, nil
}

// Text returns the text of the user's message, or "" when there is none.
func (e *Event) Text() string {
	if e == nil || e.UserMessage == nil || e.UserMessage.Content == nil {
		return ""
	}
	return e.UserMessage.Content.Text
}

// MessageID returns the id of the user's message, or "".
func (e *Event) MessageID() string {
	if e == nil || e.UserMessage == nil {
		return ""
	}
	return e.UserMessage.MessageID
}
