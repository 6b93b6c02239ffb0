// Package scoring computes the factuality, relevance and completeness
// dimensions of an evaluated turn.
package scoring

import (
	"context"
	"fmt"

	"github.com/WessleyAI/evalpipe/engine/claims"
	"github.com/WessleyAI/evalpipe/engine/domain"
	"github.com/WessleyAI/evalpipe/engine/semantic"
)

// HallucinationThreshold is the support score below which a claim is
// flagged. It is independent of the verdict thresholds.
const HallucinationThreshold = 0.55

// Embedder is the part of embed.Provider the scorers need.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Factuality is the per-claim support breakdown of an answer.
type Factuality struct {
	AvgScore           float64   `json:"avg_score"`
	Claims             []string  `json:"claims"`
	ClaimScores        []float64 `json:"claim_scores"`
	HallucinatedClaims []string  `json:"hallucinated_claims"`
}

// Scorer holds the provider and index builder shared across evaluations.
type Scorer struct {
	emb     Embedder
	builder semantic.Builder
}

// New returns a Scorer. A nil builder uses the in-memory flat index.
func New(emb Embedder, builder semantic.Builder) *Scorer {
	if builder == nil {
		builder = semantic.FlatBuilder{}
	}
	return &Scorer{emb: emb, builder: builder}
}

// Factuality scores every claim of answer by its best cosine match among
// chunks. With no chunks every claim scores 0.
func (s *Scorer) Factuality(ctx context.Context, answer string, chunks []domain.ContextChunk) (Factuality, error) {
	cs := claims.Split(answer)
	rep := Factuality{
		Claims:             cs,
		ClaimScores:        make([]float64, 0, len(cs)),
		HallucinatedClaims: []string{},
	}
	if len(cs) == 0 {
		return rep, nil
	}

	chunkVecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := s.emb.EmbedOne(ctx, c.Text)
		if err != nil {
			return Factuality{}, fmt.Errorf("scoring: factuality: chunk %q: %w", c.ID, err)
		}
		chunkVecs[i] = v
	}

	var sum float64
	for _, claim := range cs {
		cv, err := s.emb.EmbedOne(ctx, claim)
		if err != nil {
			return Factuality{}, fmt.Errorf("scoring: factuality: claim: %w", err)
		}
		best := 0.0
		for j, vec := range chunkVecs {
			if sim := semantic.Cosine(cv, vec); j == 0 || sim > best {
				best = sim
			}
		}
		rep.ClaimScores = append(rep.ClaimScores, best)
		if best < HallucinationThreshold {
			rep.HallucinatedClaims = append(rep.HallucinatedClaims, claim)
		}
		sum += best
	}
	rep.AvgScore = sum / float64(len(cs))
	return rep, nil
}

// Relevance is the cosine similarity of the full question and answer.
func (s *Scorer) Relevance(ctx context.Context, question, answer string) (float64, error) {
	q, err := s.emb.EmbedOne(ctx, question)
	if err != nil {
		return 0, fmt.Errorf("scoring: relevance: question: %w", err)
	}
	a, err := s.emb.EmbedOne(ctx, answer)
	if err != nil {
		return 0, fmt.Errorf("scoring: relevance: answer: %w", err)
	}
	return semantic.Cosine(q, a), nil
}

// Completeness maps the squared L2 distance from the answer to its nearest
// chunk through 1/(1+d). It is 0 when there are no chunks.
func (s *Scorer) Completeness(ctx context.Context, answer string, chunks []domain.ContextChunk) (float64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.emb.EmbedMany(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("scoring: completeness: contexts: %w", err)
	}
	a, err := s.emb.EmbedOne(ctx, answer)
	if err != nil {
		return 0, fmt.Errorf("scoring: completeness: answer: %w", err)
	}
	m, ok, err := semantic.NearestChunk(ctx, s.builder, a, chunks, vecs)
	if err != nil {
		return 0, fmt.Errorf("scoring: completeness: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return semantic.DistanceScore(m.Distance), nil
}
