// Package pii detects and redacts personally identifiable information in
// chat text using regex patterns. Detection is best effort, not exhaustive.
package pii

import "regexp"

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-]{7,}\d`)
	nameRe  = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)\b`)
	idRe    = regexp.MustCompile(`\b\d{6,}\b`)
)

// Placeholder tokens substituted by Redact.
const (
	EmailToken = "[REDACTED_EMAIL]"
	PhoneToken = "[REDACTED_PHONE]"
	IDToken    = "[REDACTED_ID]"
	NameToken  = "[REDACTED_NAME]"
)

// Findings lists every match per category, in text order.
type Findings struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
	IDs    []string `json:"ids"`
	Names  []string `json:"names"`
}

// Empty reports whether nothing was detected.
func (f Findings) Empty() bool {
	return len(f.Emails)+len(f.Phones)+len(f.IDs)+len(f.Names) == 0
}

// Detect scans text for emails, phone numbers, numeric IDs and capitalised names.
func Detect(text string) Findings {
	return Findings{
		Emails: findAll(emailRe, text),
		Phones: findAll(phoneRe, text),
		IDs:    findAll(idRe, text),
		Names:  findAll(nameRe, text),
	}
}

// Redact replaces PII with placeholder tokens. Order matters: emails first so
// their digits are not taken for phones, names last.
func Redact(text string) string {
	text = emailRe.ReplaceAllLiteralString(text, EmailToken)
	text = phoneRe.ReplaceAllLiteralString(text, PhoneToken)
	text = idRe.ReplaceAllLiteralString(text, IDToken)
	text = nameRe.ReplaceAllLiteralString(text, NameToken)
	return text
}

func findAll(re *regexp.Regexp, text string) []string {
	out := re.FindAllString(text, -1)
	if out == nil {
		return []string{}
	}
	return out
}
