package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func chat(msgs ...Message) ChatDocument { return ChatDocument{Messages: msgs} }

func TestValidateChat_Valid(t *testing.T) {
	doc := chat(
		Message{Role: RoleUser, Content: "What is AI?"},
		Message{Role: RoleAssistant, Content: "AI means artificial intelligence."},
		Message{Role: RoleSystem, Content: "be brief"},
	)
	if err := ValidateChat(doc); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateChat_MissingMessages(t *testing.T) {
	err := ValidateChat(ChatDocument{})
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Field != "messages" {
		t.Errorf("expected field messages, got %+v", se)
	}
}

func TestValidateChat_BadRole(t *testing.T) {
	err := ValidateChat(chat(Message{Role: "bot", Content: "hi"}))
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	var se *SchemaError
	if errors.As(err, &se) && se.Field != "messages[0].role" {
		t.Errorf("unexpected field %q", se.Field)
	}
}

func TestValidateChat_EmptyRole(t *testing.T) {
	if err := ValidateChat(chat(Message{Content: "hi"})); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestValidateContext(t *testing.T) {
	if err := ValidateContext(ContextDocument{}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for missing contexts, got %v", err)
	}
	if err := ValidateContext(ContextDocument{Contexts: []ContextChunk{}}); err != nil {
		t.Fatalf("empty contexts list should be valid, got %v", err)
	}
}

func TestExtractTurn_Positional(t *testing.T) {
	// Roles are not checked in positional mode.
	doc := chat(
		Message{Role: RoleSystem, Content: "question"},
		Message{Role: RoleUser, Content: "answer"},
	)
	turn, err := ExtractTurn(doc, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.User != "question" || turn.Assistant != "answer" {
		t.Errorf("unexpected turn %+v", turn)
	}
}

func TestExtractTurn_Strict(t *testing.T) {
	doc := chat(
		Message{Role: RoleSystem, Content: "question"},
		Message{Role: RoleUser, Content: "answer"},
	)
	if _, err := ExtractTurn(doc, true); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema in strict mode, got %v", err)
	}

	ok := chat(
		Message{Role: RoleUser, Content: "q"},
		Message{Role: RoleAssistant, Content: "a"},
	)
	if _, err := ExtractTurn(ok, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTurn_TooFewMessages(t *testing.T) {
	if _, err := ExtractTurn(chat(Message{Role: RoleUser, Content: "q"}), false); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestExtractTurn_EmptyContent(t *testing.T) {
	doc := chat(
		Message{Role: RoleUser, Content: "q"},
		Message{Role: RoleAssistant, Content: "   "},
	)
	if _, err := ExtractTurn(doc, false); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestConfigError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := NewConfigError("relevance_min", "missing", cause)
	if !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig")
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause")
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{Path: "x.json"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound")
	}
	if err.Error() != "not found: x.json" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestContextDocumentTexts(t *testing.T) {
	doc := ContextDocument{Contexts: []ContextChunk{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}}}
	got := doc.Texts()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("unexpected texts %v", got)
	}
}

func TestUnmarshalRequiredFields(t *testing.T) {
	tests := []struct {
		name, in, field string
		ctx             bool
	}{
		{"message without content", `{"messages":[{"role":"user","content":"q"},{"role":"assistant"}]}`, "messages[1].content", false},
		{"message with null content", `{"messages":[{"role":"user","content":null}]}`, "messages[0].content", false},
		{"chunk without text", `{"contexts":[{"id":"c1"}]}`, "contexts[0].text", true},
		{"chunk with null text", `{"contexts":[{"id":"c1","text":null}]}`, "contexts[0].text", true},
		{"chunk without id", `{"contexts":[{"text":"t"}]}`, "contexts[0].id", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.ctx {
				var doc ContextDocument
				err = json.Unmarshal([]byte(tt.in), &doc)
			} else {
				var doc ChatDocument
				err = json.Unmarshal([]byte(tt.in), &doc)
			}
			var se *SchemaError
			if !errors.As(err, &se) || se.Field != tt.field {
				t.Fatalf("err = %v, want SchemaError on %s", err, tt.field)
			}
		})
	}
}

func TestUnmarshalKeepsEmptyLists(t *testing.T) {
	var chat ChatDocument
	if err := json.Unmarshal([]byte(`{"messages":[]}`), &chat); err != nil || chat.Messages == nil {
		t.Fatalf("empty messages: %+v, %v", chat, err)
	}
	var ctx ContextDocument
	if err := json.Unmarshal([]byte(`{"contexts":[{"id":"a","text":""}]}`), &ctx); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Contexts) != 1 || ctx.Contexts[0].ID != "a" {
		t.Errorf("unexpected doc %+v", ctx)
	}
	var missing ContextDocument
	if err := json.Unmarshal([]byte(`{}`), &missing); err != nil || ValidateContext(missing) == nil {
		t.Errorf("missing contexts must fail validation, err=%v", err)
	}
}
