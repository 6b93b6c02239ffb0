package pii

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectEmail(t *testing.T) {
	f := Detect("Contact: alice@example.com")
	if len(f.Emails) != 1 || f.Emails[0] != "alice@example.com" {
		t.Fatalf("expected alice@example.com, got %v", f.Emails)
	}
}

func TestDetectAll(t *testing.T) {
	f := Detect("Mary Jones called from +1 555 222 3333 about order 1234567.")
	want := Findings{
		Emails: []string{},
		Phones: []string{"+1 555 222 3333"},
		IDs:    []string{"1234567"},
		Names:  []string{"Mary Jones"},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectNothing(t *testing.T) {
	f := Detect("no pii here at all")
	if !f.Empty() {
		t.Errorf("expected empty findings, got %+v", f)
	}
	if f.Emails == nil || f.Names == nil {
		t.Error("expected non-nil slices")
	}
}

func TestRedactPhone(t *testing.T) {
	out := Redact("Call at +1 555 222 3333")
	if !strings.Contains(out, PhoneToken) {
		t.Fatalf("expected phone token in %q", out)
	}
	if strings.Contains(out, "555") {
		t.Errorf("digits leaked: %q", out)
	}
}

func TestRedactOrder(t *testing.T) {
	got := Redact("Email bob.smith@mail.org or id 987654")
	want := "[REDACTED_NAME] " + EmailToken + " or id " + IDToken
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRedactKeepsLowercase(t *testing.T) {
	in := "artificial intelligence helps"
	if got := Redact(in); got != in {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestDetectASCIIClasses(t *testing.T) {
	// Digit and boundary classes are ASCII; other scripts' numerals pass through.
	f := Detect("ref ١٢٣٤٥٦٧٨ and 12345678")
	if diff := cmp.Diff([]string{"12345678"}, f.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}
