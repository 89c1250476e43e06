package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

type textExtractionFake struct {
	out   domain.ExtractedText
	calls int
}

func (f *textExtractionFake) Extract(context.Context, domain.Document) domain.ExtractedText {
	f.calls++
	return f.out
}

type diseaseClassificationFake struct {
	preds []domain.DiseasePrediction
	err   error
	panic bool
	calls int
}

func (f *diseaseClassificationFake) Classify(context.Context, string) ([]domain.DiseasePrediction, error) {
	f.calls++
	if f.panic {
		panic("classifier exploded")
	}
	return f.preds, f.err
}

type clinicalAnalysisFake struct {
	out   domain.AnalysisOutcome
	calls int
}

func (f *clinicalAnalysisFake) Analyze(context.Context, string) domain.AnalysisOutcome {
	f.calls++
	return f.out
}

type recommendationSynthesisFake struct {
	out   domain.RecommendationSet
	preds []domain.DiseasePrediction
	calls int
}

func (f *recommendationSynthesisFake) Synthesize(_ context.Context, _ string, preds []domain.DiseasePrediction) domain.RecommendationSet {
	f.calls++
	f.preds = preds
	return f.out
}

type stageObserverFake struct {
	mu       sync.Mutex
	statuses map[domain.PipelineStage]string
}

func (f *stageObserverFake) ObserveStage(stage domain.PipelineStage, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[domain.PipelineStage]string)
	}
	f.statuses[stage] = status
}

const pipelineReportText = "Patient presents with persistent cough and fever for five days."

func successfulExtraction() domain.ExtractedText {
	return domain.ExtractedText{
		Pages:     []domain.Page{{PageNumber: 1, Content: pipelineReportText}},
		FullText:  pipelineReportText,
		PageCount: 1,
		Success:   true,
	}
}

func successfulAnalysis() domain.AnalysisOutcome {
	return domain.AnalysisOutcome{AnalysisResult: &domain.AnalysisResult{
		Entities: []domain.MedicalEntity{},
		Summary:  "Cough and fever.",
		Severity: domain.ReportSeverityLow,
	}}
}

func TestAnalyzeReportExtractionFailureStopsPipeline(t *testing.T) {
	extractor := &textExtractionFake{out: domain.FailedExtraction("Text processing failed: invalid UTF-8 byte sequence")}
	classifier := &diseaseClassificationFake{}
	analyzer := &clinicalAnalysisFake{}
	synthesizer := &recommendationSynthesisFake{}
	uc := NewAnalyzeReportUseCase(extractor, classifier, analyzer, synthesizer, nil)

	result, err := uc.Analyze(context.Background(), domain.Document{Format: domain.FormatPlainText})
	if err == nil {
		t.Fatalf("expected extraction error")
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure kind, got %v", err)
	}
	if err.Error() != "Text processing failed: invalid UTF-8 byte sequence" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if extractor.calls != 1 {
		t.Fatalf("expected one extraction call, got %d", extractor.calls)
	}
	if classifier.calls != 0 || analyzer.calls != 0 || synthesizer.calls != 0 {
		t.Fatalf("downstream stages invoked: classify=%d analyze=%d synthesize=%d",
			classifier.calls, analyzer.calls, synthesizer.calls)
	}
}

func TestAnalyzeReportSuccess(t *testing.T) {
	preds := []domain.DiseasePrediction{{Disease: domain.Respiratory, Confidence: 0.9, Severity: domain.SeverityHigh}}
	synthesizer := &recommendationSynthesisFake{out: domain.RecommendationSet{
		Categories: []domain.RecommendationGroup{{Category: domain.CategoryMedical, Items: []string{"rest"}}},
		ModelUsed:  "local",
	}}
	observer := &stageObserverFake{}
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{preds: preds},
		&clinicalAnalysisFake{out: successfulAnalysis()},
		synthesizer,
		observer,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{Format: domain.FormatPlainText})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Status != domain.PipelineSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Status, result.DegradedStages)
	}
	if result.Text != pipelineReportText || result.PageCount != 1 {
		t.Fatalf("unexpected text fields %+v", result)
	}
	if result.ReportID == "" {
		t.Fatalf("expected report id")
	}
	if result.LowQualityText {
		t.Fatalf("expected text to pass quality gate")
	}
	if len(synthesizer.preds) != 1 || synthesizer.preds[0].Disease != domain.Respiratory {
		t.Fatalf("synthesis did not receive predictions: %+v", synthesizer.preds)
	}
	for _, stage := range []domain.PipelineStage{domain.StageExtraction, domain.StageClassification, domain.StageAnalysis, domain.StageSynthesis} {
		if observer.statuses[stage] != stageStatusOK {
			t.Fatalf("stage %s observed as %q", stage, observer.statuses[stage])
		}
	}
}

func TestAnalyzeReportIDIsStableForSameText(t *testing.T) {
	newUC := func() *AnalyzeReportUseCase {
		return NewAnalyzeReportUseCase(
			&textExtractionFake{out: successfulExtraction()},
			&diseaseClassificationFake{},
			&clinicalAnalysisFake{out: successfulAnalysis()},
			&recommendationSynthesisFake{},
			nil,
		)
	}
	first, err := newUC().Analyze(context.Background(), domain.Document{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := newUC().Analyze(context.Background(), domain.Document{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if first.ReportID != second.ReportID {
		t.Fatalf("report ids differ: %s vs %s", first.ReportID, second.ReportID)
	}
}

func TestAnalyzeReportClassifierFailureDegrades(t *testing.T) {
	synthesizer := &recommendationSynthesisFake{}
	analyzer := &clinicalAnalysisFake{out: successfulAnalysis()}
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{err: errors.New("inference timeout")},
		analyzer,
		synthesizer,
		nil,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Status != domain.PipelinePartial {
		t.Fatalf("expected partial status, got %s", result.Status)
	}
	if result.Predictions == nil || len(result.Predictions) != 0 {
		t.Fatalf("expected empty predictions, got %#v", result.Predictions)
	}
	if result.PredictionsError == "" {
		t.Fatalf("expected predictions error")
	}
	if analyzer.calls != 1 || synthesizer.calls != 1 {
		t.Fatalf("expected analysis and synthesis to run, got %d/%d", analyzer.calls, synthesizer.calls)
	}
	if synthesizer.preds == nil || len(synthesizer.preds) != 0 {
		t.Fatalf("synthesis must receive an empty prediction list, got %#v", synthesizer.preds)
	}
}

func TestAnalyzeReportClassifierPanicIsIsolated(t *testing.T) {
	analyzer := &clinicalAnalysisFake{out: successfulAnalysis()}
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{panic: true},
		analyzer,
		&recommendationSynthesisFake{},
		nil,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Analysis.Failed() {
		t.Fatalf("analysis must survive a classifier panic")
	}
	if result.Status != domain.PipelinePartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
}

func TestAnalyzeReportAnalysisFailureIsPartial(t *testing.T) {
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{},
		&clinicalAnalysisFake{out: domain.AnalysisOutcome{Error: "Analysis failed: boom"}},
		&recommendationSynthesisFake{out: domain.RecommendationSet{Error: "Failed to generate recommendations: down"}},
		nil,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Status != domain.PipelinePartial {
		t.Fatalf("expected partial, got %s", result.Status)
	}
	want := []domain.PipelineStage{domain.StageAnalysis, domain.StageSynthesis}
	if len(result.DegradedStages) != 2 || result.DegradedStages[0] != want[0] || result.DegradedStages[1] != want[1] {
		t.Fatalf("unexpected degraded stages %v", result.DegradedStages)
	}
}

type panickingExtraction struct{}

func (panickingExtraction) Extract(context.Context, domain.Document) domain.ExtractedText {
	panic("nil pointer in extractor")
}

func TestAnalyzeReportRecoversUnexpectedPanic(t *testing.T) {
	uc := NewAnalyzeReportUseCase(panickingExtraction{}, &diseaseClassificationFake{}, &clinicalAnalysisFake{}, &recommendationSynthesisFake{}, nil)

	_, err := uc.Analyze(context.Background(), domain.Document{})
	if !domain.IsKind(err, domain.ErrUnexpected) {
		t.Fatalf("expected unexpected error kind, got %v", err)
	}
}

func TestAnalyzeReportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	synthesizer := &recommendationSynthesisFake{}
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{},
		&clinicalAnalysisFake{out: successfulAnalysis()},
		synthesizer,
		nil,
	)

	_, err := uc.Analyze(ctx, domain.Document{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if synthesizer.calls != 0 {
		t.Fatalf("synthesis must not run after cancellation")
	}
}

// rendezvous lets two stages wait for each other; each succeeds only when the
// other is running at the same time.
type rendezvous struct {
	classifying chan struct{}
	analyzing   chan struct{}
}

func newRendezvous() *rendezvous {
	return &rendezvous{classifying: make(chan struct{}), analyzing: make(chan struct{})}
}

type meetingClassifier struct{ r *rendezvous }

func (m meetingClassifier) Classify(ctx context.Context, _ string) ([]domain.DiseasePrediction, error) {
	close(m.r.classifying)
	select {
	case <-m.r.analyzing:
		return []domain.DiseasePrediction{{Disease: domain.Respiratory, Confidence: 0.9, Severity: domain.SeverityHigh}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type meetingAnalyzer struct{ r *rendezvous }

func (m meetingAnalyzer) Analyze(ctx context.Context, _ string) domain.AnalysisOutcome {
	close(m.r.analyzing)
	select {
	case <-m.r.classifying:
		return successfulAnalysis()
	case <-ctx.Done():
		return analysisFailure(ctx.Err())
	}
}

func TestAnalyzeReportRunsClassificationAndAnalysisConcurrently(t *testing.T) {
	r := newRendezvous()
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		meetingClassifier{r},
		meetingAnalyzer{r},
		&recommendationSynthesisFake{},
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := uc.Analyze(ctx, domain.Document{Format: domain.FormatPlainText})
	if err != nil {
		t.Fatalf("stages did not overlap: %v", err)
	}
	if result.Status != domain.PipelineSuccess || len(result.Predictions) != 1 || result.Analysis.Failed() {
		t.Fatalf("unexpected result %+v", result)
	}
}

type slowAnalyzer struct {
	delay  time.Duration
	ctxErr error
}

func (s *slowAnalyzer) Analyze(ctx context.Context, _ string) domain.AnalysisOutcome {
	time.Sleep(s.delay)
	s.ctxErr = ctx.Err()
	return successfulAnalysis()
}

func TestAnalyzeReportClassifierFailureDoesNotCancelAnalysis(t *testing.T) {
	analyzer := &slowAnalyzer{delay: 20 * time.Millisecond}
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: successfulExtraction()},
		&diseaseClassificationFake{err: errors.New("inference down")},
		analyzer,
		&recommendationSynthesisFake{},
		nil,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{Format: domain.FormatPlainText})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analyzer.ctxErr != nil {
		t.Fatalf("analysis context was canceled: %v", analyzer.ctxErr)
	}
	if result.Status != domain.PipelinePartial || result.Analysis.Failed() {
		t.Fatalf("expected partial result with analysis intact, got %+v", result)
	}
}

func TestAnalyzeReportLowOCRConfidenceFlagsQuality(t *testing.T) {
	extracted := successfulExtraction()
	extracted.LowConfidence = true
	uc := NewAnalyzeReportUseCase(
		&textExtractionFake{out: extracted},
		&diseaseClassificationFake{},
		&clinicalAnalysisFake{out: successfulAnalysis()},
		&recommendationSynthesisFake{},
		nil,
	)

	result, err := uc.Analyze(context.Background(), domain.Document{Format: domain.FormatImage})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !result.LowQualityText {
		t.Fatalf("expected low OCR confidence to flag the text as low quality")
	}
}
