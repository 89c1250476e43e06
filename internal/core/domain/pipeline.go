package domain

type PipelineStatus string

const (
	PipelineSuccess PipelineStatus = "success"
	PipelinePartial PipelineStatus = "partial"
	PipelineError   PipelineStatus = "error"
)

type PipelineStage string

const (
	StageExtraction     PipelineStage = "extraction"
	StageClassification PipelineStage = "classification"
	StageAnalysis       PipelineStage = "analysis"
	StageSynthesis      PipelineStage = "synthesis"
)

type PipelineResult struct {
	Status           PipelineStatus      `json:"status"`
	ReportID         string              `json:"report_id"`
	Text             string              `json:"text"`
	Pages            []Page              `json:"pages"`
	PageCount        int                 `json:"page_count"`
	LowQualityText   bool                `json:"low_quality_text"`
	Predictions      []DiseasePrediction `json:"predictions"`
	PredictionsError string              `json:"predictions_error,omitempty"`
	Analysis         AnalysisOutcome     `json:"analysis"`
	Recommendations  RecommendationSet   `json:"recommendations"`
	DegradedStages   []PipelineStage     `json:"degraded_stages,omitempty"`
}

type ErrorEnvelope struct {
	Status PipelineStatus `json:"status"`
	Error  string         `json:"error"`
	Code   int            `json:"status_code"`
}
