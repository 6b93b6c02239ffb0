package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/WessleyAI/evalpipe/engine/report"
	"github.com/WessleyAI/evalpipe/engine/verdict"
)

// Columns is the CSV header written by WriteCSV.
var Columns = []string{"chat_file", "context_file", "relevance", "completeness", "factuality", "verdict", "latency", "total_tokens"}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []report.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("batch: write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return fmt.Errorf("batch: write csv row %s: %w", r.ChatFile, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r report.Row) []string {
	return []string{
		r.ChatFile,
		r.ContextFile,
		report.FormatFloat(r.Relevance),
		report.FormatFloat(r.Completeness),
		report.FormatFloat(r.Factuality),
		string(r.Verdict),
		report.FormatFloat(r.Latency),
		strconv.Itoa(r.TotalTokens),
	}
}

// ReadCSV parses a batch CSV by header name. A factuality_avg column is
// accepted in place of factuality; optional columns may be absent.
func ReadCSV(r io.Reader) ([]report.Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []report.Row{}, nil
		}
		return nil, fmt.Errorf("batch: read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	if _, ok := col["factuality"]; !ok {
		if i, ok := col["factuality_avg"]; ok {
			col["factuality"] = i
		}
	}
	for _, required := range []string{"chat_file", "relevance", "completeness", "factuality", "verdict"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("batch: csv missing column %q", required)
		}
	}

	rows := []report.Row{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("batch: read csv line %d: %w", line, err)
		}
		row, err := parseRow(rec, col)
		if err != nil {
			return nil, fmt.Errorf("batch: csv line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(rec []string, col map[string]int) (report.Row, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	float := func(name string) (float64, error) {
		s := get(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	var (
		row report.Row
		err error
	)
	row.ChatFile = get("chat_file")
	row.ContextFile = get("context_file")
	row.Verdict = verdict.Verdict(get("verdict"))
	if row.Relevance, err = float("relevance"); err != nil {
		return row, err
	}
	if row.Completeness, err = float("completeness"); err != nil {
		return row, err
	}
	if row.Factuality, err = float("factuality"); err != nil {
		return row, err
	}
	if row.Latency, err = float("latency"); err != nil {
		return row, err
	}
	if s := get("total_tokens"); s != "" {
		if row.TotalTokens, err = strconv.Atoi(s); err != nil {
			return row, fmt.Errorf("total_tokens: %w", err)
		}
	}
	return row, nil
}

// AppendCSVFile appends rows to path, writing the header only when the file
// is new or empty.
func AppendCSVFile(path string, rows []report.Row) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("batch: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("batch: stat %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Columns); err != nil {
			f.Close()
			return fmt.Errorf("batch: write csv header: %w", err)
		}
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			f.Close()
			return fmt.Errorf("batch: write csv row %s: %w", r.ChatFile, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
