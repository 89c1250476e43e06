package domain

import (
	"strings"
	"unicode"
)

type TermCategory string

const (
	TermDiagnosis  TermCategory = "diagnosis"
	TermMedication TermCategory = "medication"
	TermTest       TermCategory = "test"
	TermSymptom    TermCategory = "symptom"
	TermOther      TermCategory = "other"
)

// termKeywords is checked in order; the first category with a matching word wins.
var termKeywords = []struct {
	category TermCategory
	words    []string
}{
	{TermDiagnosis, []string{"syndrome", "disease", "disorder", "condition"}},
	{TermMedication, []string{"tablet", "capsule", "injection", "mg", "ml"}},
	{TermTest, []string{"test", "scan", "xray", "mri", "ct", "level"}},
	{TermSymptom, []string{"pain", "ache", "discomfort", "feeling"}},
}

// CategorizeTerm files a medical term under a coarse category. Keywords of up
// to three letters must match a whole word; longer ones may appear inside a
// word. Hyphens are dropped first so "X-ray" reads as "xray", and digits split
// words so "500mg" yields "mg".
func CategorizeTerm(term string) TermCategory {
	words := strings.FieldsFunc(strings.ReplaceAll(strings.ToLower(term), "-", ""), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, k := range termKeywords {
		for _, w := range words {
			for _, kw := range k.words {
				if w == kw || (len(kw) > 3 && strings.Contains(w, kw)) {
					return k.category
				}
			}
		}
	}
	return TermOther
}
