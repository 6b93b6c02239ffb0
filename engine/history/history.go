// Package history persists evaluation reports in Neo4j as :Evaluation nodes.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/pkg/repo"
)

// Label is the node label used for stored evaluations.
const Label = "Evaluation"

// Record is one stored evaluation. Summary fields are node properties so
// they can be queried; the full report is kept as JSON.
type Record struct {
	ID           string             `json:"id"`
	Source       string             `json:"source,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	Verdict      string             `json:"verdict"`
	QualityScore float64            `json:"quality_score"`
	Report       report.ScoreReport `json:"report"`

	// reportJSON is Report as encoded by Save, the only writer.
	reportJSON []byte
}

// Store reads and writes evaluation records.
type Store struct {
	repo repo.Repository[Record, string]
	now  func() time.Time
}

// Connect opens a Neo4j driver and verifies connectivity.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("history: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("history: neo4j connect %s: %w", url, err)
	}
	return driver, nil
}

// New returns a Store backed by driver.
func New(driver neo4j.DriverWithContext) *Store {
	return newStore(repo.NewNeo4jRepo[Record, string](driver, Label, toProps, fromProps))
}

func newStore(r repo.Repository[Record, string]) *Store {
	return &Store{repo: r, now: time.Now}
}

func toProps(r Record) map[string]any {
	return map[string]any{
		"id":            r.ID,
		"source":        r.Source,
		"created_at":    r.CreatedAt.UnixMilli(),
		"verdict":       r.Verdict,
		"quality_score": r.QualityScore,
		"relevance":     r.Report.Scores.Relevance,
		"completeness":  r.Report.Scores.Completeness,
		"factuality":    r.Report.Scores.Factuality.AvgScore,
		"total_tokens":  int64(r.Report.TokenUsage.TotalTokens),
		"report":        string(r.reportJSON),
	}
}

func fromProps(p map[string]any) (Record, error) {
	var rec Record
	rec.ID, _ = p["id"].(string)
	rec.Source, _ = p["source"].(string)
	rec.Verdict, _ = p["verdict"].(string)
	rec.QualityScore, _ = p["quality_score"].(float64)
	if ms, ok := p["created_at"].(int64); ok {
		rec.CreatedAt = time.UnixMilli(ms).UTC()
	}
	raw, _ := p["report"].(string)
	if raw == "" {
		return Record{}, fmt.Errorf("history: evaluation %s has no report", rec.ID)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Report); err != nil {
		return Record{}, fmt.Errorf("history: decode report %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Save stores r under its id, replacing any previous record. A report that
// cannot be encoded as JSON is rejected before anything is written.
func (s *Store) Save(ctx context.Context, r report.ScoreReport, source string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: encode report %s: %w", r.ID, err)
	}
	_, err = s.repo.Save(ctx, Record{
		ID:           r.ID,
		Source:       source,
		CreatedAt:    s.now().UTC(),
		Verdict:      string(r.Verdict),
		QualityScore: r.Scores.QualityScore,
		Report:       r,
		reportJSON:   data,
	})
	if err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the record with id or a NotFoundError.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Record{}, &domain.NotFoundError{Path: "evaluation/" + id}
		}
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return rec, nil
}

// Recent lists the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	recs, err := s.repo.List(ctx, repo.ListOpts{Limit: limit, OrderBy: "created_at", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return recs, nil
}
