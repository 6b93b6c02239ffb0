package ingest

import (
	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/pkg/pii"
)

// Source names the chat and context files of one evaluation.
type Source struct {
	ChatPath string `json:"chat_path"`
	CtxPath  string `json:"ctx_path"`
}

// Documents are the decoded inputs of one evaluation.
type Documents struct {
	Chat    domain.ChatDocument    `json:"chat"`
	Context domain.ContextDocument `json:"context"`
}

// Extracted is a validated turn with its context, before redaction.
type Extracted struct {
	Turn     domain.ChatTurn
	Contexts []domain.ContextChunk
}

// Prepared is the scored input: the redacted turn, the context chunks and
// the PII found in the raw text.
type Prepared struct {
	Turn         domain.ChatTurn
	Contexts     []domain.ContextChunk
	UserPII      pii.Findings
	AssistantPII pii.Findings
}
