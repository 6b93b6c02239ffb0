package claims

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two sentences", "AI means artificial intelligence. It helps.", []string{"AI means artificial intelligence", "It helps"}},
		{"empty", "", []string{}},
		{"whitespace only", "  \n\t ", []string{}},
		{"no terminator", "  just one thought  ", []string{"just one thought"}},
		{"repeated terminators", "Really?! Yes... ok", []string{"Really", "Yes", "ok"}},
		{"only punctuation", "?!.", []string{}},
		{"abbreviation split", "Dr. Smith agreed.", []string{"Dr", "Smith agreed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}
