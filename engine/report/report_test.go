package report

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/WessleyAI/evalpipe/engine/scoring"
	"github.com/WessleyAI/evalpipe/engine/usage"
	"github.com/WessleyAI/evalpipe/engine/verdict"
	"github.com/WessleyAI/evalpipe/pkg/pii"
)

var half = verdict.Thresholds{RelevanceMin: 0.5, CompletenessMin: 0.5, FactualityMin: 0.5}

func sampleInput() Input {
	return Input{
		ID:           "eval-1",
		Relevance:    0.9,
		Completeness: 0.8,
		Factuality: scoring.Factuality{
			AvgScore:           0.9,
			Claims:             []string{"a"},
			ClaimScores:        []float64{0.9},
			HallucinatedClaims: []string{},
		},
		LatencySeconds: 1.5,
		Usage:          usage.Usage{UserTokens: 3, AssistantTokens: 4, TotalTokens: 7, EstimatedCostUSD: 0.014},
		PII: PII{
			User:      pii.Detect("mail me at a@b.co"),
			Assistant: pii.Detect("nothing here"),
		},
		Thresholds: half,
	}
}

func TestBuild(t *testing.T) {
	r := Build(sampleInput())
	if r.Verdict != verdict.Pass {
		t.Errorf("verdict = %s, want PASS", r.Verdict)
	}
	want := verdict.Quality(0.9, 0.8, 0.9)
	if r.Scores.QualityScore != want {
		t.Errorf("quality = %v, want %v", r.Scores.QualityScore, want)
	}

	in := sampleInput()
	in.Factuality.AvgScore = 0.1
	if got := Build(in).Verdict; got != verdict.Fail {
		t.Errorf("verdict = %s, want FAIL", got)
	}
}

func TestRenderJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, Build(sampleInput())); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"scores\": {") {
		t.Errorf("expected two-space indent, got:\n%s", buf.String())
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	var keys []string
	for k := range decoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	wantKeys := []string{"id", "latency_seconds", "pii_detected", "scores", "token_usage", "verdict"}
	if diff := cmp.Diff(wantKeys, keys); diff != "" {
		t.Errorf("top-level keys (-want +got):\n%s", diff)
	}

	scores := decoded["scores"].(map[string]any)
	fact := scores["factuality"].(map[string]any)
	for _, k := range []string{"avg_score", "claims", "claim_scores", "hallucinated_claims"} {
		if _, ok := fact[k]; !ok {
			t.Errorf("factuality missing %q", k)
		}
	}
	if fact["hallucinated_claims"] == nil {
		t.Error("hallucinated_claims must encode as [] not null")
	}
	tu := decoded["token_usage"].(map[string]any)
	if tu["total_tokens"].(float64) != 7 {
		t.Errorf("total_tokens = %v", tu["total_tokens"])
	}
	user := decoded["pii_detected"].(map[string]any)["user"].(map[string]any)
	if emails := user["emails"].([]any); len(emails) != 1 || emails[0] != "a@b.co" {
		t.Errorf("emails = %v", emails)
	}
}

func TestRowOf(t *testing.T) {
	r := Build(sampleInput())
	got := RowOf("chat.json", "ctx.json", r)
	want := Row{
		ChatFile: "chat.json", ContextFile: "ctx.json",
		Relevance: 0.9, Completeness: 0.8, Factuality: 0.9,
		Verdict: verdict.Pass, Latency: 1.5, TotalTokens: 7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RowOf (-want +got):\n%s", diff)
	}
}

func TestRenderBenchmark(t *testing.T) {
	rows := []Row{
		{ChatFile: "sample-chat-conversation-01.json", Relevance: 1, Completeness: 0.5, Factuality: 0.25, Verdict: verdict.Fail, TotalTokens: 10},
		{ChatFile: "sample-chat-conversation-02.json", Relevance: 0.5, Completeness: 0.5, Factuality: 0.75, Verdict: verdict.Pass, TotalTokens: 20},
	}
	var buf bytes.Buffer
	if err := RenderBenchmark(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Benchmark Results",
		"*Total evaluated files:* 2",
		"- Average relevance: 0.750",
		"- Average completeness: 0.500",
		"- Average factuality: 0.500",
		"- Verdicts: 1 PASS, 0 WARN, 1 FAIL",
		"## Detailed results",
		"chat_file",
		"total_tokens",
		"sample-chat-conversation-01.json",
		"sample-chat-conversation-02.json",
		"0.25",
		"FAIL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "No rows found") {
		t.Error("non-empty benchmark must not report empty CSV")
	}
}

func TestRenderBenchmarkEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBenchmark(&buf, nil); err != nil {
		t.Fatal(err)
	}
	want := "# Benchmark Results\n\n*Total evaluated files:* 0\n\nNo rows found in CSV.\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
