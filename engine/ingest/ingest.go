// Package ingest loads and validates the evaluation inputs and prepares the
// turn for scoring: decode, schema check, turn extraction, PII redaction.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/pkg/fn"
	"github.com/WessleyAI/evalpipe/pkg/pii"
)

// DecodeChat parses and validates a chat document.
func DecodeChat(r io.Reader) (domain.ChatDocument, error) {
	var doc domain.ChatDocument
	if err := decode(r, &doc); err != nil {
		return domain.ChatDocument{}, err
	}
	if err := domain.ValidateChat(doc); err != nil {
		return domain.ChatDocument{}, err
	}
	return doc, nil
}

// DecodeContext parses and validates a context document.
func DecodeContext(r io.Reader) (domain.ContextDocument, error) {
	var doc domain.ContextDocument
	if err := decode(r, &doc); err != nil {
		return domain.ContextDocument{}, err
	}
	if err := domain.ValidateContext(doc); err != nil {
		return domain.ContextDocument{}, err
	}
	return doc, nil
}

func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, domain.ErrSchema) {
			return err
		}
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return domain.NewSchemaError(ute.Field, fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value))
		}
		return domain.NewSchemaError("document", "invalid JSON: "+err.Error())
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	return data, nil
}

// LoadChat reads and validates the chat document at path.
func LoadChat(path string) (domain.ChatDocument, error) {
	data, err := readFile(path)
	if err != nil {
		return domain.ChatDocument{}, err
	}
	doc, err := DecodeChat(bytes.NewReader(data))
	if err != nil {
		return domain.ChatDocument{}, fmt.Errorf("ingest: %s: %w", path, err)
	}
	return doc, nil
}

// LoadContext reads and validates the context document at path.
func LoadContext(path string) (domain.ContextDocument, error) {
	data, err := readFile(path)
	if err != nil {
		return domain.ContextDocument{}, err
	}
	doc, err := DecodeContext(bytes.NewReader(data))
	if err != nil {
		return domain.ContextDocument{}, fmt.Errorf("ingest: %s: %w", path, err)
	}
	return doc, nil
}

// --- Pipeline Stages ---

// Load reads both files of a Source.
var Load fn.Stage[Source, Documents] = func(_ context.Context, src Source) fn.Result[Documents] {
	chat, err := LoadChat(src.ChatPath)
	if err != nil {
		return fn.Err[Documents](err)
	}
	ctxDoc, err := LoadContext(src.CtxPath)
	if err != nil {
		return fn.Err[Documents](err)
	}
	return fn.Ok(Documents{Chat: chat, Context: ctxDoc})
}

// Validate checks documents that did not come through Load, such as
// inline request bodies.
var Validate fn.Stage[Documents, Documents] = func(_ context.Context, docs Documents) fn.Result[Documents] {
	if err := domain.ValidateChat(docs.Chat); err != nil {
		return fn.Err[Documents](err)
	}
	if err := domain.ValidateContext(docs.Context); err != nil {
		return fn.Err[Documents](err)
	}
	return fn.Ok(docs)
}

// NewExtract pulls the scored turn out of the chat document.
func NewExtract(strictRoles bool) fn.Stage[Documents, Extracted] {
	return func(_ context.Context, docs Documents) fn.Result[Extracted] {
		turn, err := domain.ExtractTurn(docs.Chat, strictRoles)
		if err != nil {
			return fn.Err[Extracted](err)
		}
		return fn.Ok(Extracted{Turn: turn, Contexts: docs.Context.Contexts})
	}
}

// Redact records PII in the raw turn and replaces it with placeholders.
var Redact fn.Stage[Extracted, Prepared] = fn.MapStage(func(in Extracted) Prepared {
	return Prepared{
		Turn: domain.ChatTurn{
			User:      pii.Redact(in.Turn.User),
			Assistant: pii.Redact(in.Turn.Assistant),
		},
		Contexts:     in.Contexts,
		UserPII:      pii.Detect(in.Turn.User),
		AssistantPII: pii.Detect(in.Turn.Assistant),
	}
})

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// Options configures the preparation pipeline.
type Options struct {
	StrictRoles bool
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// NewDocumentPipeline prepares already-decoded documents:
// Validate → Extract → Redact.
func NewDocumentPipeline(opts Options) fn.Stage[Documents, Prepared] {
	log := opts.logger()
	validated := fn.Then(LoggedTap[Documents]("validate", log), Validate)
	extracted := fn.Then(validated, fn.Then(LoggedTap[Documents]("extract", log), NewExtract(opts.StrictRoles)))
	return fn.Then(extracted, fn.Then(LoggedTap[Extracted]("redact", log), Redact))
}

// NewFilePipeline prepares inputs read from disk: Load → Extract → Redact.
func NewFilePipeline(opts Options) fn.Stage[Source, Prepared] {
	log := opts.logger()
	loaded := fn.Then(LoggedTap[Source]("load", log), Load)
	extracted := fn.Then(loaded, fn.Then(LoggedTap[Documents]("extract", log), NewExtract(opts.StrictRoles)))
	return fn.Then(extracted, fn.Then(LoggedTap[Extracted]("redact", log), Redact))
}
