package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type DiseaseCategory int

const (
	Cardiovascular DiseaseCategory = iota
	Respiratory
	Gastrointestinal
	Neurological
	Musculoskeletal
	Endocrine
	Infectious
	Dermatological
	Psychological
	Oncological
)

var diseaseCategoryNames = [...]string{
	"Cardiovascular",
	"Respiratory",
	"Gastrointestinal",
	"Neurological",
	"Musculoskeletal",
	"Endocrine",
	"Infectious",
	"Dermatological",
	"Psychological",
	"Oncological",
}

// DiseaseCategories lists every category in enum order.
func DiseaseCategories() []DiseaseCategory {
	out := make([]DiseaseCategory, len(diseaseCategoryNames))
	for i := range diseaseCategoryNames {
		out[i] = DiseaseCategory(i)
	}
	return out
}

func (c DiseaseCategory) String() string {
	if c < 0 || int(c) >= len(diseaseCategoryNames) {
		return "Unknown"
	}
	return diseaseCategoryNames[c]
}

func (c DiseaseCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *DiseaseCategory) UnmarshalText(text []byte) error {
	parsed, ok := ParseDiseaseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown disease category %q", string(text))
	}
	*c = parsed
	return nil
}

// ParseDiseaseCategory accepts a category name or a "LABEL_<n>" index label.
func ParseDiseaseCategory(label string) (DiseaseCategory, bool) {
	label = strings.TrimSpace(label)
	for i, name := range diseaseCategoryNames {
		if strings.EqualFold(label, name) {
			return DiseaseCategory(i), true
		}
	}
	const prefix = "LABEL_"
	if len(label) > len(prefix) && strings.EqualFold(label[:len(prefix)], prefix) {
		n, err := strconv.Atoi(label[len(prefix):])
		if err == nil && n >= 0 && n < len(diseaseCategoryNames) {
			return DiseaseCategory(n), true
		}
	}
	return 0, false
}

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// SeverityFromConfidence buckets a classifier probability.
func SeverityFromConfidence(p float64) Severity {
	switch {
	case p >= 0.8:
		return SeverityHigh
	case p >= 0.6:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type DiseasePrediction struct {
	Disease    DiseaseCategory `json:"disease"`
	Confidence float64         `json:"confidence"`
	Severity   Severity        `json:"severity"`
}
