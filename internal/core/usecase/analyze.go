package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

const (
	answerScoreThreshold     = 0.7
	defaultSummaryMinLen     = 50
	defaultSummaryMaxLen     = 150
	fallbackSummaryRunes     = 200
	fallbackSummarySentences = 3
	recommendedTestsQuestion = "What medical tests are recommended?"
)

var keyFindingQuestions = []string{
	"What are the main symptoms?",
	"What are the diagnostic findings?",
	"What are the abnormal results?",
}

var summaryKeywords = []string{"diagnosis", "treatment", "recommendation", "finding", "result"}

var medicationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\w+cillin\b`),
	regexp.MustCompile(`(?i)\b\w+statin\b`),
	regexp.MustCompile(`(?i)\b(?:ibuprofen|aspirin|metformin|insulin)\b`),
}

var measurementPatterns = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{"blood_pressure", regexp.MustCompile(`(\d{2,3})/(\d{2,3})\s*(?:mmHg)?`)},
	{"temperature", regexp.MustCompile(`(\d{2,3}(?:\.\d)?)\s*[°℃℉]`)},
	{"weight", regexp.MustCompile(`(\d{2,3}(?:\.\d)?)\s*(?:kg|lbs)\b`)},
	{"height", regexp.MustCompile(`(\d{2,3}(?:\.\d)?)\s*(?:cm|m|ft)\b`)},
}

var severityBuckets = []struct {
	level    domain.ReportSeverity
	keywords []string
}{
	{domain.ReportSeverityHigh, []string{"severe", "critical", "urgent", "emergency"}},
	{domain.ReportSeverityMedium, []string{"moderate", "concerning", "significant"}},
	{domain.ReportSeverityLow, []string{"mild", "minor", "slight"}},
}

type AnalyzerOptions struct {
	NERTimeout       time.Duration
	QATimeout        time.Duration
	SummaryTimeout   time.Duration
	SummaryMinLength int
	SummaryMaxLength int
}

// ClinicalAnalyzer degrades each sub-step to an empty value on capability
// failure, panics included. Only a failure of the stage as a whole (its own
// logic panicking or the context ending) is reported as an error.
type ClinicalAnalyzer struct {
	ner        ports.TokenClassifier
	qa         ports.QuestionAnswerer
	summarizer ports.Summarizer
	opts       AnalyzerOptions
}

func NewClinicalAnalyzer(ner ports.TokenClassifier, qa ports.QuestionAnswerer, summarizer ports.Summarizer, opts AnalyzerOptions) *ClinicalAnalyzer {
	if opts.SummaryMinLength <= 0 {
		opts.SummaryMinLength = defaultSummaryMinLen
	}
	if opts.SummaryMaxLength < opts.SummaryMinLength {
		opts.SummaryMaxLength = max(defaultSummaryMaxLen, opts.SummaryMinLength)
	}
	return &ClinicalAnalyzer{
		ner:        ner,
		qa:         qa,
		summarizer: summarizer,
		opts:       opts,
	}
}

func (a *ClinicalAnalyzer) Analyze(ctx context.Context, text string) (out domain.AnalysisOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("clinical_analysis_panic", "panic", r)
			out = analysisFailure(fmt.Errorf("%v", r))
		}
	}()

	entities := a.ExtractEntities(ctx, text)
	findings := a.ExtractKeyFindings(ctx, text)
	tests := a.ExtractRecommendedTests(ctx, text)
	summary := a.Summarize(ctx, text)

	if err := ctx.Err(); err != nil {
		return analysisFailure(err)
	}

	return domain.AnalysisOutcome{
		AnalysisResult: &domain.AnalysisResult{
			Entities:         entities,
			KeyFindings:      findings,
			RecommendedTests: tests,
			Medications:      ExtractMedications(text),
			Measurements:     ExtractMeasurements(text),
			Summary:          summary,
			Severity:         AggregateSeverity(entities),
		},
	}
}

// guardCapability turns a panicking capability call into an error so the
// sub-step degrades like any other capability failure.
func guardCapability[T any](capability string, call func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out, err = zero, fmt.Errorf("%s panicked: %v", capability, r)
		}
	}()
	return call()
}

func analysisFailure(err error) domain.AnalysisOutcome {
	return domain.AnalysisOutcome{Error: fmt.Sprintf("Analysis failed: %v", err)}
}

func (a *ClinicalAnalyzer) ExtractEntities(ctx context.Context, text string) []domain.MedicalEntity {
	entities := []domain.MedicalEntity{}
	if a.ner == nil {
		return entities
	}

	callCtx, cancel := withOptionalTimeout(ctx, a.opts.NERTimeout)
	defer cancel()

	labels, err := guardCapability("token classification", func() ([]domain.TokenLabel, error) {
		return a.ner.ClassifyTokens(callCtx, text)
	})
	if err != nil {
		slog.Warn("entity_extraction_degraded", "error", err)
		return entities
	}
	for _, label := range labels {
		entities = append(entities, normalizeEntity(label))
	}
	return entities
}

func normalizeEntity(label domain.TokenLabel) domain.MedicalEntity {
	text := label.Word
	if text == "" {
		text = label.Token
	}
	kind := label.EntityGroup
	if kind == "" {
		kind = label.Entity
	}
	return domain.MedicalEntity{
		Text:       text,
		Type:       kind,
		Category:   domain.CategorizeTerm(text),
		Confidence: label.Score,
		Start:      label.Start,
		End:        label.End,
	}
}

// ExtractKeyFindings asks each clinical question in order. A failing question
// is skipped without affecting the others.
func (a *ClinicalAnalyzer) ExtractKeyFindings(ctx context.Context, text string) []string {
	findings := []string{}
	for _, question := range keyFindingQuestions {
		answer, ok := a.confidentAnswer(ctx, question, text)
		if ok {
			findings = append(findings, answer)
		}
	}
	return findings
}

func (a *ClinicalAnalyzer) ExtractRecommendedTests(ctx context.Context, text string) []string {
	tests := []string{}
	answer, ok := a.confidentAnswer(ctx, recommendedTestsQuestion, text)
	if !ok {
		return tests
	}
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > 2 {
			tests = append(tests, part)
		}
	}
	return tests
}

func (a *ClinicalAnalyzer) confidentAnswer(ctx context.Context, question, text string) (string, bool) {
	if a.qa == nil {
		return "", false
	}

	callCtx, cancel := withOptionalTimeout(ctx, a.opts.QATimeout)
	defer cancel()

	result, err := guardCapability("question answering", func() (domain.Answer, error) {
		return a.qa.Answer(callCtx, question, text)
	})
	if err != nil {
		slog.Warn("question_answering_degraded", "question", question, "error", err)
		return "", false
	}
	if result.Score <= answerScoreThreshold {
		return "", false
	}
	return result.Text, true
}

// Summarize prefers the abstractive capability and falls back to an extractive
// summary that cannot fail.
func (a *ClinicalAnalyzer) Summarize(ctx context.Context, text string) string {
	if a.summarizer != nil {
		callCtx, cancel := withOptionalTimeout(ctx, a.opts.SummaryTimeout)
		summary, err := guardCapability("summarization", func() (string, error) {
			return a.summarizer.Summarize(callCtx, text, a.opts.SummaryMinLength, a.opts.SummaryMaxLength)
		})
		cancel()
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil {
			slog.Warn("summarization_degraded", "error", err)
		}
	}
	return ExtractiveSummary(text)
}

func ExtractiveSummary(text string) string {
	var important []string
	for _, sentence := range strings.Split(text, ".") {
		lower := strings.ToLower(sentence)
		for _, keyword := range summaryKeywords {
			if strings.Contains(lower, keyword) {
				important = append(important, strings.TrimSpace(sentence))
				break
			}
		}
		if len(important) == fallbackSummarySentences {
			break
		}
	}
	if len(important) > 0 {
		return strings.Join(important, ". ") + "."
	}

	runes := []rune(text)
	if len(runes) > fallbackSummaryRunes {
		runes = runes[:fallbackSummaryRunes]
	}
	return string(runes) + "..."
}

// ExtractMedications returns lowercased medication mentions, deduplicated and
// sorted.
func ExtractMedications(text string) []string {
	seen := make(map[string]struct{})
	for _, pattern := range medicationPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			seen[strings.ToLower(match)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ExtractMeasurements(text string) []domain.Measurement {
	out := []domain.Measurement{}
	for _, m := range measurementPatterns {
		for _, groups := range m.pattern.FindAllStringSubmatch(text, -1) {
			out = append(out, domain.Measurement{
				Type:    m.kind,
				Value:   groups[1],
				RawText: strings.TrimSpace(groups[0]),
			})
		}
	}
	return out
}

// AggregateSeverity is a keyword heuristic over entity text: any high-bucket
// hit wins, then medium, otherwise low.
func AggregateSeverity(entities []domain.MedicalEntity) domain.ReportSeverity {
	hits := make(map[domain.ReportSeverity]int, len(severityBuckets))
	for _, entity := range entities {
		text := strings.ToLower(entity.Text)
		for _, bucket := range severityBuckets {
			for _, keyword := range bucket.keywords {
				if strings.Contains(text, keyword) {
					hits[bucket.level]++
					break
				}
			}
		}
	}
	switch {
	case hits[domain.ReportSeverityHigh] > 0:
		return domain.ReportSeverityHigh
	case hits[domain.ReportSeverityMedium] > 0:
		return domain.ReportSeverityMedium
	default:
		return domain.ReportSeverityLow
	}
}
