package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/WessleyAI/evalpipe/engine/verdict"
)

// Row is the flattened per-pair summary written to batch CSV files.
type Row struct {
	ChatFile     string
	ContextFile  string
	Relevance    float64
	Completeness float64
	Factuality   float64
	Verdict      verdict.Verdict
	Latency      float64
	TotalTokens  int
}

// RowOf flattens r for the given file pair.
func RowOf(chatFile, contextFile string, r ScoreReport) Row {
	return Row{
		ChatFile:     chatFile,
		ContextFile:  contextFile,
		Relevance:    r.Scores.Relevance,
		Completeness: r.Scores.Completeness,
		Factuality:   r.Scores.Factuality.AvgScore,
		Verdict:      r.Verdict,
		Latency:      r.LatencySeconds,
		TotalTokens:  r.TokenUsage.TotalTokens,
	}
}

// FormatFloat renders v with the shortest exact representation.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newMarkdownTable(w io.Writer, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// RenderBenchmark writes a markdown summary of batch rows: totals, mean
// scores, verdict counts and a per-file table.
func RenderBenchmark(w io.Writer, rows []Row) error {
	fmt.Fprint(w, "# Benchmark Results\n\n")
	fmt.Fprintf(w, "*Total evaluated files:* %d\n\n", len(rows))
	if len(rows) == 0 {
		_, err := fmt.Fprint(w, "No rows found in CSV.\n")
		return err
	}

	var rel, comp, fact float64
	counts := map[verdict.Verdict]int{}
	for _, r := range rows {
		rel += r.Relevance
		comp += r.Completeness
		fact += r.Factuality
		counts[r.Verdict]++
	}
	n := float64(len(rows))
	fmt.Fprint(w, "## Summary Statistics\n\n")
	fmt.Fprintf(w, "- Average relevance: %.3f\n", rel/n)
	fmt.Fprintf(w, "- Average completeness: %.3f\n", comp/n)
	fmt.Fprintf(w, "- Average factuality: %.3f\n", fact/n)
	fmt.Fprintf(w, "- Verdicts: %d PASS, %d WARN, %d FAIL\n\n", counts[verdict.Pass], counts[verdict.Warn], counts[verdict.Fail])

	fmt.Fprint(w, "## Detailed results\n\n")
	table := newMarkdownTable(w, []string{"chat_file", "relevance", "completeness", "factuality", "verdict", "total_tokens"})
	for _, r := range rows {
		if err := table.Append([]string{
			r.ChatFile,
			FormatFloat(r.Relevance),
			FormatFloat(r.Completeness),
			FormatFloat(r.Factuality),
			string(r.Verdict),
			strconv.Itoa(r.TotalTokens),
		}); err != nil {
			return fmt.Errorf("report: benchmark row %s: %w", r.ChatFile, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("report: render benchmark: %w", err)
	}
	return nil
}
