// Package report assembles the final evaluation record and renders it as
// JSON or as a benchmark summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/WessleyAI/evalpipe/engine/scoring"
	"github.com/WessleyAI/evalpipe/engine/usage"
	"github.com/WessleyAI/evalpipe/engine/verdict"
	"github.com/WessleyAI/evalpipe/pkg/pii"
)

// Scores groups the scored dimensions and their weighted aggregate.
type Scores struct {
	Relevance    float64            `json:"relevance"`
	Completeness float64            `json:"completeness"`
	Factuality   scoring.Factuality `json:"factuality"`
	QualityScore float64            `json:"quality_score"`
}

// PII holds what was detected in each side of the turn before redaction.
type PII struct {
	User      pii.Findings `json:"user"`
	Assistant pii.Findings `json:"assistant"`
}

// ScoreReport is the immutable result of one evaluation.
type ScoreReport struct {
	ID             string          `json:"id"`
	Scores         Scores          `json:"scores"`
	LatencySeconds float64         `json:"latency_seconds"`
	TokenUsage     usage.Usage     `json:"token_usage"`
	Verdict        verdict.Verdict `json:"verdict"`
	PIIDetected    PII             `json:"pii_detected"`
}

// Input is everything Build needs; quality and verdict are derived.
type Input struct {
	ID             string
	Relevance      float64
	Completeness   float64
	Factuality     scoring.Factuality
	LatencySeconds float64
	Usage          usage.Usage
	PII            PII
	Thresholds     verdict.Thresholds
}

// Build derives the quality score and verdict and returns the report.
func Build(in Input) ScoreReport {
	fact := in.Factuality.AvgScore
	return ScoreReport{
		ID: in.ID,
		Scores: Scores{
			Relevance:    in.Relevance,
			Completeness: in.Completeness,
			Factuality:   in.Factuality,
			QualityScore: verdict.Quality(in.Relevance, in.Completeness, fact),
		},
		LatencySeconds: in.LatencySeconds,
		TokenUsage:     in.Usage,
		Verdict:        verdict.Decide(in.Relevance, in.Completeness, fact, in.Thresholds),
		PIIDetected:    in.PII,
	}
}

// RenderJSON writes r indented by two spaces.
func RenderJSON(w io.Writer, r ScoreReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode %s: %w", r.ID, err)
	}
	return nil
}
