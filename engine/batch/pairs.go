// Package batch evaluates many chat/context pairs, locally with a worker
// pool or distributed over NATS, and reads and writes the results as CSV.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/evalpipe/engine/ingest"
)

// File naming of a sample pair: the chat file's suffix after the last '-'
// selects its context file.
const (
	ChatPrefix    = "sample-chat-conversation-"
	ContextPrefix = "sample_context_vectors-"
)

// FindPairs matches chat files in dir with their context files, sorted by
// chat file name. Chat files without a context file are skipped.
func FindPairs(dir string) ([]ingest.Source, error) {
	chats, err := filepath.Glob(filepath.Join(dir, ChatPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("batch: find pairs in %s: %w", dir, err)
	}
	sort.Strings(chats)

	pairs := []ingest.Source{}
	for _, c := range chats {
		stem := strings.TrimSuffix(filepath.Base(c), ".json")
		idx := stem[strings.LastIndex(stem, "-")+1:]
		ctx := filepath.Join(dir, ContextPrefix+idx+".json")
		if _, err := os.Stat(ctx); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("batch: stat %s: %w", ctx, err)
		}
		pairs = append(pairs, ingest.Source{ChatPath: c, CtxPath: ctx})
	}
	return pairs, nil
}
