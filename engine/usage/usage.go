// Package usage estimates token counts, cost and latency for a turn.
package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// encoding loads cl100k_base from the ranks embedded by the offline loader,
// so counting never touches the network.
var encoding = sync.OnceValue(func() *tiktoken.Tiktoken {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		panic(fmt.Sprintf("usage: load cl100k_base: %v", err))
	}
	return enc
})

// CountTokens returns the cl100k_base token count of text. Special-token
// strings are counted as plain text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(encoding().Encode(text, nil, nil))
}

// EstimateCost prices tokens at pricePer1K per thousand.
func EstimateCost(tokens int, pricePer1K float64) float64 {
	return float64(tokens) / 1000 * pricePer1K
}

// Usage is the token accounting for one evaluated turn.
type Usage struct {
	UserTokens       int     `json:"user_tokens"`
	AssistantTokens  int     `json:"assistant_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// ForTurn counts both sides of a turn and prices the total.
func ForTurn(user, assistant string, pricePer1K float64) Usage {
	u := CountTokens(user)
	a := CountTokens(assistant)
	return Usage{
		UserTokens:       u,
		AssistantTokens:  a,
		TotalTokens:      u + a,
		EstimatedCostUSD: EstimateCost(u+a, pricePer1K),
	}
}

var isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02"}

func parseISO(s string) (time.Time, error) {
	for _, l := range isoLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("usage: invalid timestamp %q", s)
}

// Latency returns the seconds between two ISO-8601 timestamps. Timestamps
// without a zone are read as UTC.
func Latency(start, end string) (float64, error) {
	t1, err := parseISO(start)
	if err != nil {
		return 0, err
	}
	t2, err := parseISO(end)
	if err != nil {
		return 0, err
	}
	return t2.Sub(t1).Seconds(), nil
}
