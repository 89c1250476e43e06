package ports

import (
	"context"
	"time"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// TextExtraction turns an upload into page text. It reports failure inside the
// returned value and never returns an error.
type TextExtraction interface {
	Extract(ctx context.Context, doc domain.Document) domain.ExtractedText
}

// DiseaseClassification ranks disease categories for a report text.
type DiseaseClassification interface {
	Classify(ctx context.Context, text string) ([]domain.DiseasePrediction, error)
}

// ClinicalAnalysis derives entities, findings and summary from a report text.
type ClinicalAnalysis interface {
	Analyze(ctx context.Context, text string) domain.AnalysisOutcome
}

// RecommendationSynthesis produces categorized recommendations.
type RecommendationSynthesis interface {
	Synthesize(ctx context.Context, text string, predictions []domain.DiseasePrediction) domain.RecommendationSet
}

// StageObserver records per-stage outcomes.
type StageObserver interface {
	ObserveStage(stage domain.PipelineStage, status string, duration time.Duration)
}
