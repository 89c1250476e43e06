package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

// reportNamespace scopes content-derived report ids.
var reportNamespace = uuid.MustParse("8f4b2c7e-5d1a-4e8b-9c3f-2a6d7e9b1c40")

const (
	stageStatusOK       = "ok"
	stageStatusDegraded = "degraded"
	stageStatusFailed   = "failed"
)

// AnalyzeReportUseCase runs extraction, then classification and clinical
// analysis concurrently, then recommendation synthesis.
type AnalyzeReportUseCase struct {
	extractor   ports.TextExtraction
	classifier  ports.DiseaseClassification
	analyzer    ports.ClinicalAnalysis
	synthesizer ports.RecommendationSynthesis
	observer    ports.StageObserver
}

func NewAnalyzeReportUseCase(
	extractor ports.TextExtraction,
	classifier ports.DiseaseClassification,
	analyzer ports.ClinicalAnalysis,
	synthesizer ports.RecommendationSynthesis,
	observer ports.StageObserver,
) *AnalyzeReportUseCase {
	return &AnalyzeReportUseCase{
		extractor:   extractor,
		classifier:  classifier,
		analyzer:    analyzer,
		synthesizer: synthesizer,
		observer:    observer,
	}
}

func (uc *AnalyzeReportUseCase) Analyze(ctx context.Context, doc domain.Document) (result *domain.PipelineResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline_panic", "panic", r, "stack", string(debug.Stack()))
			result = nil
			err = domain.WrapError(domain.ErrUnexpected, "analyze report", fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	extracted := uc.extract(ctx, doc)
	if !extracted.Success {
		slog.Warn("pipeline_extraction_failed", "format", doc.Format, "error", extracted.Error)
		return nil, domain.NewUserError(domain.ErrExtractionFailed, extracted.Error)
	}
	text := extracted.FullText

	var (
		predictions []domain.DiseasePrediction
		classifyErr error
		analysis    domain.AnalysisOutcome
	)
	// Neither task returns an error, so one failing never cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		predictions, classifyErr = uc.classify(ctx, text)
		return nil
	})
	g.Go(func() error {
		analysis = uc.analyze(ctx, text)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyze report: %w", err)
	}

	recommendations := uc.synthesize(ctx, text, predictions)

	result = &domain.PipelineResult{
		Status:          domain.PipelineSuccess,
		ReportID:        uuid.NewSHA1(reportNamespace, []byte(text)).String(),
		Text:            text,
		Pages:           extracted.Pages,
		PageCount:       extracted.PageCount,
		LowQualityText:  extracted.LowConfidence || !ValidateText(text),
		Predictions:     predictions,
		Analysis:        analysis,
		Recommendations: recommendations,
	}
	if classifyErr != nil {
		result.PredictionsError = "Disease classification failed: " + classifyErr.Error()
		result.DegradedStages = append(result.DegradedStages, domain.StageClassification)
	}
	if analysis.Failed() {
		result.DegradedStages = append(result.DegradedStages, domain.StageAnalysis)
	}
	if recommendations.Error != "" {
		result.DegradedStages = append(result.DegradedStages, domain.StageSynthesis)
	}
	if len(result.DegradedStages) > 0 {
		result.Status = domain.PipelinePartial
	}

	slog.Info("pipeline_completed",
		"report_id", result.ReportID,
		"status", result.Status,
		"pages", result.PageCount,
		"predictions", len(result.Predictions),
		"low_quality_text", result.LowQualityText,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return result, nil
}

func (uc *AnalyzeReportUseCase) extract(ctx context.Context, doc domain.Document) domain.ExtractedText {
	start := time.Now()
	extracted := uc.extractor.Extract(ctx, doc)
	status := stageStatusOK
	if !extracted.Success {
		status = stageStatusFailed
	}
	uc.observe(domain.StageExtraction, status, start)
	return extracted
}

func (uc *AnalyzeReportUseCase) classify(ctx context.Context, text string) (predictions []domain.DiseasePrediction, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("classification_panic", "panic", r)
			predictions, err = nil, fmt.Errorf("unexpected classifier failure")
		}
		status := stageStatusOK
		if err != nil {
			status = stageStatusDegraded
			predictions = []domain.DiseasePrediction{}
		}
		uc.observe(domain.StageClassification, status, start)
	}()

	predictions, err = uc.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("classification_degraded", "error", err)
		return nil, err
	}
	if predictions == nil {
		predictions = []domain.DiseasePrediction{}
	}
	return predictions, nil
}

func (uc *AnalyzeReportUseCase) analyze(ctx context.Context, text string) (outcome domain.AnalysisOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis_panic", "panic", r)
			outcome = analysisFailure(errors.New("unexpected analyzer failure"))
		}
		status := stageStatusOK
		if outcome.Failed() {
			status = stageStatusFailed
		}
		uc.observe(domain.StageAnalysis, status, start)
	}()
	return uc.analyzer.Analyze(ctx, text)
}

func (uc *AnalyzeReportUseCase) synthesize(ctx context.Context, text string, predictions []domain.DiseasePrediction) (set domain.RecommendationSet) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("synthesis_panic", "panic", r)
			set = failedRecommendations("unexpected generator failure")
		}
		status := stageStatusOK
		if set.Error != "" {
			status = stageStatusDegraded
		}
		uc.observe(domain.StageSynthesis, status, start)
	}()
	return uc.synthesizer.Synthesize(ctx, text, predictions)
}

func (uc *AnalyzeReportUseCase) observe(stage domain.PipelineStage, status string, start time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveStage(stage, status, time.Since(start))
}
