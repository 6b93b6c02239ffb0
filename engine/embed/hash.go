package embed

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultHashDims matches the dimensionality of small sentence encoders.
const DefaultHashDims = 384

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Hash is an offline, deterministic embedder using signed feature hashing of
// lowercased words and word bigrams. Output vectors are L2-normalised; text
// without words embeds to the zero vector.
type Hash struct {
	Dims int
}

// NewHash creates a hashing embedder; dims <= 0 uses DefaultHashDims.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &Hash{Dims: dims}
}

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *Hash) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	acc := make([]float64, h.Dims)
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	for i, w := range words {
		h.add(acc, w, 1)
		if i > 0 {
			h.add(acc, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, h.Dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func (h *Hash) add(acc []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	idx := sum % uint64(len(acc))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}
