package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MessageType discriminates inbound client messages.
type MessageType string

const (
	// MessageUser submits one user utterance for pipeline processing.
	MessageUser MessageType = "user_message"
	// MessageNodeQuery asks a question about a single graph node.
	MessageNodeQuery MessageType = "node_query"
)

// Message is one inbound client message. Malformed messages are rejected
// with an error event before any state is mutated.
type Message struct {
	SessionID string      `json:"sessionId" validate:"required"`
	Type      MessageType `json:"type" validate:"required,oneof=user_message node_query"`
	Content   string      `json:"content,omitempty" validate:"required_if=Type user_message"`
	Scenario  string      `json:"scenario,omitempty"`
	NodeID    string      `json:"nodeId,omitempty" validate:"required_if=Type node_query"`
	Question  string      `json:"question,omitempty"`
}

var validate = validator.New()

// Validate checks the message against its structural constraints.
func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// Utterance is one entry of a session's conversation log.
type Utterance struct {
	Role    string `json:"role"`              // user or assistant
	Speaker string `json:"speaker,omitempty"` // part name for scenario replies
	Content string `json:"content"`
}
