package domain

import (
	"encoding/json"
	"fmt"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRoles enumerates accepted message roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

// Message is one entry of a chat document.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatDocument is the chat input: {"messages": [...]}.
type ChatDocument struct {
	Messages []Message `json:"messages"`
}

// UnmarshalJSON rejects messages whose content is absent or null.
func (d *ChatDocument) UnmarshalJSON(data []byte) error {
	var wire struct {
		Messages []struct {
			Role    Role    `json:"role"`
			Content *string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Messages == nil {
		*d = ChatDocument{}
		return nil
	}
	msgs := make([]Message, len(wire.Messages))
	for i, m := range wire.Messages {
		if m.Content == nil {
			return NewSchemaError(fmt.Sprintf("messages[%d].content", i), "field is required")
		}
		msgs[i] = Message{Role: m.Role, Content: *m.Content}
	}
	d.Messages = msgs
	return nil
}

// ContextChunk is a unit of retrieved reference text.
type ContextChunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ContextDocument is the context input: {"contexts": [...]}.
type ContextDocument struct {
	Contexts []ContextChunk `json:"contexts"`
}

// UnmarshalJSON rejects chunks whose id or text is absent or null.
func (d *ContextDocument) UnmarshalJSON(data []byte) error {
	var wire struct {
		Contexts []struct {
			ID   *string `json:"id"`
			Text *string `json:"text"`
		} `json:"contexts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Contexts == nil {
		*d = ContextDocument{}
		return nil
	}
	chunks := make([]ContextChunk, len(wire.Contexts))
	for i, c := range wire.Contexts {
		switch {
		case c.ID == nil:
			return NewSchemaError(fmt.Sprintf("contexts[%d].id", i), "field is required")
		case c.Text == nil:
			return NewSchemaError(fmt.Sprintf("contexts[%d].text", i), "field is required")
		}
		chunks[i] = ContextChunk{ID: *c.ID, Text: *c.Text}
	}
	d.Contexts = chunks
	return nil
}

// Texts returns the chunk texts in document order.
func (d ContextDocument) Texts() []string {
	out := make([]string, len(d.Contexts))
	for i, c := range d.Contexts {
		out[i] = c.Text
	}
	return out
}

// ChatTurn is the single user/assistant pair that gets scored.
type ChatTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
