package domain

type MedicalEntity struct {
	Text       string       `json:"text"`
	Type       string       `json:"type"`
	Category   TermCategory `json:"category"`
	Confidence float64      `json:"confidence"`
	Start      *int         `json:"start,omitempty"`
	End        *int         `json:"end,omitempty"`
}

// TokenLabel is the raw output of a token classification capability. Backends
// fill either Word or Token, and either EntityGroup or Entity.
type TokenLabel struct {
	Word        string  `json:"word,omitempty"`
	Token       string  `json:"token,omitempty"`
	EntityGroup string  `json:"entity_group,omitempty"`
	Entity      string  `json:"entity,omitempty"`
	Score       float64 `json:"score"`
	Start       *int    `json:"start,omitempty"`
	End         *int    `json:"end,omitempty"`
}

type Answer struct {
	Text  string  `json:"answer"`
	Score float64 `json:"score"`
}

type Measurement struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	RawText string `json:"raw_text"`
}

type ReportSeverity string

const (
	ReportSeverityLow    ReportSeverity = "low"
	ReportSeverityMedium ReportSeverity = "medium"
	ReportSeverityHigh   ReportSeverity = "high"
)

type AnalysisResult struct {
	Entities         []MedicalEntity `json:"entities"`
	KeyFindings      []string        `json:"key_findings"`
	RecommendedTests []string        `json:"recommended_tests"`
	Medications      []string        `json:"medications"`
	Measurements     []Measurement   `json:"measurements"`
	Summary          string          `json:"summary"`
	Severity         ReportSeverity  `json:"severity"`
}

// AnalysisOutcome is either a full result or the whole-stage failure message.
type AnalysisOutcome struct {
	*AnalysisResult
	Error string `json:"error,omitempty"`
}

func (o AnalysisOutcome) Failed() bool {
	return o.AnalysisResult == nil
}
