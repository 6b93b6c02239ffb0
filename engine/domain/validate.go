package domain

import (
	"fmt"
	"strings"
)

// ValidateChat checks the chat document shape and every message role.
func ValidateChat(doc ChatDocument) error {
	if doc.Messages == nil {
		return NewSchemaError("messages", "field is required")
	}
	for i, m := range doc.Messages {
		if m.Role == "" {
			return NewSchemaError(fmt.Sprintf("messages[%d].role", i), "field is required")
		}
		if !ValidRoles[m.Role] {
			return NewSchemaError(fmt.Sprintf("messages[%d].role", i), fmt.Sprintf("must be user, assistant or system, got %q", m.Role))
		}
	}
	return nil
}

// ValidateContext checks the context document shape.
func ValidateContext(doc ContextDocument) error {
	if doc.Contexts == nil {
		return NewSchemaError("contexts", "field is required")
	}
	return nil
}

// ExtractTurn returns the scored turn. Messages are taken by position:
// messages[0] is the user and messages[1] the assistant. With strict set,
// those positions must carry the user and assistant roles.
func ExtractTurn(doc ChatDocument, strict bool) (ChatTurn, error) {
	if len(doc.Messages) < 2 {
		return ChatTurn{}, NewSchemaError("messages", fmt.Sprintf("need at least 2 messages, got %d", len(doc.Messages)))
	}
	user, assistant := doc.Messages[0], doc.Messages[1]
	if strict {
		if user.Role != RoleUser {
			return ChatTurn{}, NewSchemaError("messages[0].role", fmt.Sprintf("expected user, got %q", user.Role))
		}
		if assistant.Role != RoleAssistant {
			return ChatTurn{}, NewSchemaError("messages[1].role", fmt.Sprintf("expected assistant, got %q", assistant.Role))
		}
	}
	if strings.TrimSpace(user.Content) == "" {
		return ChatTurn{}, NewSchemaError("messages[0].content", "must not be empty")
	}
	if strings.TrimSpace(assistant.Content) == "" {
		return ChatTurn{}, NewSchemaError("messages[1].content", "must not be empty")
	}
	return ChatTurn{User: user.Content, Assistant: assistant.Content}, nil
}
