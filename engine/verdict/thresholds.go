package verdict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/evalpipe/engine/domain"
)

// Threshold keys. All are required.
const (
	KeyRelevanceMin     = "relevance_min"
	KeyCompletenessMin  = "completeness_min"
	KeyFactualityMin    = "factuality_min"
	KeyPricePer1KTokens = "price_per_1k_tokens"
)

var requiredKeys = []string{KeyRelevanceMin, KeyCompletenessMin, KeyFactualityMin, KeyPricePer1KTokens}

// Thresholds is the evaluation configuration read before scoring.
type Thresholds struct {
	RelevanceMin     float64 `yaml:"relevance_min" json:"relevance_min"`
	CompletenessMin  float64 `yaml:"completeness_min" json:"completeness_min"`
	FactualityMin    float64 `yaml:"factuality_min" json:"factuality_min"`
	PricePer1KTokens float64 `yaml:"price_per_1k_tokens" json:"price_per_1k_tokens"`
}

// Source yields the thresholds for one evaluation.
type Source interface {
	Load(ctx context.Context) (Thresholds, error)
}

// Static is a fixed Source.
type Static Thresholds

func (s Static) Load(context.Context) (Thresholds, error) { return Thresholds(s), nil }

// FileSource reads a YAML file on every Load.
type FileSource struct {
	Path string
}

func (f FileSource) Load(context.Context) (Thresholds, error) {
	return LoadFile(f.Path)
}

// LoadFile reads and parses a thresholds file. A missing file is a
// ConfigError wrapping a NotFoundError.
func LoadFile(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Thresholds{}, domain.NewConfigError(path, "thresholds file missing", &domain.NotFoundError{Path: path})
		}
		return Thresholds{}, domain.NewConfigError(path, "read thresholds", err)
	}
	return Parse(data)
}

// Parse decodes YAML thresholds. Every key must be present and hold a
// finite number; nothing is defaulted.
func Parse(data []byte) (Thresholds, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Thresholds{}, domain.NewConfigError("thresholds", "invalid yaml", err)
	}
	vals := make(map[string]float64, len(requiredKeys))
	for _, k := range requiredKeys {
		v, ok := raw[k]
		if !ok || v == nil {
			return Thresholds{}, domain.NewConfigError(k, "missing required key", nil)
		}
		f, ok := toFloat(v)
		if !ok {
			return Thresholds{}, domain.NewConfigError(k, fmt.Sprintf("not a number: %v", v), nil)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Thresholds{}, domain.NewConfigError(k, "must be finite", nil)
		}
		vals[k] = f
	}
	return Thresholds{
		RelevanceMin:     vals[KeyRelevanceMin],
		CompletenessMin:  vals[KeyCompletenessMin],
		FactualityMin:    vals[KeyFactualityMin],
		PricePer1KTokens: vals[KeyPricePer1KTokens],
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
