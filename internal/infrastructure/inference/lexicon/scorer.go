// Package lexicon is an offline disease scorer used when no inference server
// is configured. It turns keyword hits into logits.
package lexicon

import (
	"context"
	"strings"
	"unicode"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

const (
	baseLogit = -2.0
	hitWeight = 2.0
	maxHits   = 4
)

var defaultTerms = map[domain.DiseaseCategory][]string{
	domain.Cardiovascular:   {"chest pain", "hypertension", "arrhythmia", "myocardial", "angina", "tachycardia", "palpitation", "ecg", "cardiac"},
	domain.Respiratory:      {"cough", "dyspnea", "shortness of breath", "wheezing", "pneumonia", "asthma", "bronchitis", "copd"},
	domain.Gastrointestinal: {"abdominal pain", "nausea", "vomiting", "diarrhea", "gastritis", "reflux", "colitis", "hepatic"},
	domain.Neurological:     {"headache", "migraine", "seizure", "numbness", "dizziness", "stroke", "neuropathy", "tremor"},
	domain.Musculoskeletal:  {"joint pain", "arthritis", "fracture", "back pain", "osteoporosis", "tendon", "sprain"},
	domain.Endocrine:        {"diabetes", "glucose", "thyroid", "insulin", "hba1c", "hypothyroidism", "hyperthyroidism"},
	domain.Infectious:       {"fever", "infection", "bacterial", "viral", "sepsis", "antibiotic", "culture positive"},
	domain.Dermatological:   {"rash", "eczema", "psoriasis", "lesion", "dermatitis", "pruritus", "urticaria"},
	domain.Psychological:    {"anxiety", "depression", "insomnia", "panic", "stress", "mood", "bipolar"},
	domain.Oncological:      {"tumor", "tumour", "malignant", "carcinoma", "metastasis", "oncology", "neoplasm", "biopsy"},
}

// Scorer implements the label scoring capability with a fixed term table.
// Terms are stored normalized, padded as " term ".
type Scorer struct {
	terms map[domain.DiseaseCategory][]string
}

func New() *Scorer {
	return NewWithTerms(defaultTerms)
}

// NewWithTerms replaces the term table; terms are matched case-insensitively
// on word boundaries.
func NewWithTerms(terms map[domain.DiseaseCategory][]string) *Scorer {
	padded := make(map[domain.DiseaseCategory][]string, len(terms))
	for category, list := range terms {
		for _, term := range list {
			if n := normalize(term); strings.TrimSpace(n) != "" {
				padded[category] = append(padded[category], n)
			}
		}
	}
	return &Scorer{terms: padded}
}

func (s *Scorer) Score(ctx context.Context, window string) (map[domain.DiseaseCategory]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	normalized := normalize(window)
	logits := make(map[domain.DiseaseCategory]float64, len(s.terms))
	for category, terms := range s.terms {
		hits := 0
		for _, term := range terms {
			if strings.Contains(normalized, term) {
				hits++
			}
		}
		logits[category] = baseLogit + hitWeight*float64(min(hits, maxHits))
	}
	return logits, nil
}

// normalize lowercases, collapses every non-alphanumeric run into one space
// and pads both ends so terms can be matched as " term ".
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
