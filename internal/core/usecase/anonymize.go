package usecase

import "regexp"

var redactions = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)},
}

// AnonymizeText masks phone numbers, email addresses and social security
// numbers with a "[REDACTED <kind>]" marker.
func AnonymizeText(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllLiteralString(text, "[REDACTED "+r.label+"]")
	}
	return text
}
