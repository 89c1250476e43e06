package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

const (
	defaultConfidenceThreshold = 0.5
	defaultMaxSequenceLength   = 512
)

// ClassifierOptions zero values select the defaults: threshold 0.5 and a
// 512-token window.
type ClassifierOptions struct {
	ConfidenceThreshold float64
	MaxSequenceLength   int
	Timeout             time.Duration
}

// DiseaseClassifier scores every category independently; categories are not
// mutually exclusive.
type DiseaseClassifier struct {
	scorer ports.LabelScorer
	opts   ClassifierOptions
}

func NewDiseaseClassifier(scorer ports.LabelScorer, opts ClassifierOptions) *DiseaseClassifier {
	t := opts.ConfidenceThreshold
	if math.IsNaN(t) || t <= 0 || t > 1 {
		opts.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if opts.MaxSequenceLength <= 0 {
		opts.MaxSequenceLength = defaultMaxSequenceLength
	}
	return &DiseaseClassifier{scorer: scorer, opts: opts}
}

func (c *DiseaseClassifier) Classify(ctx context.Context, text string) ([]domain.DiseasePrediction, error) {
	if c.scorer == nil {
		return nil, domain.WrapError(domain.ErrCapabilityUnavailable, "classify", fmt.Errorf("no label scorer configured"))
	}

	callCtx, cancel := withOptionalTimeout(ctx, c.opts.Timeout)
	defer cancel()

	logits, err := c.scorer.Score(callCtx, TruncateWindow(text, c.opts.MaxSequenceLength))
	if err != nil {
		return nil, fmt.Errorf("score disease categories: %w", err)
	}
	return RankPredictions(logits, c.opts.ConfidenceThreshold), nil
}

// TruncateWindow keeps the first maxTokens whitespace-delimited tokens. Content
// past the window is dropped.
func TruncateWindow(text string, maxTokens int) string {
	tokens := strings.Fields(text)
	if maxTokens > 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return strings.Join(tokens, " ")
}

// RankPredictions applies an independent sigmoid per category, keeps those at or
// above threshold and orders them by confidence, ties by category order.
func RankPredictions(logits map[domain.DiseaseCategory]float64, threshold float64) []domain.DiseasePrediction {
	out := make([]domain.DiseasePrediction, 0, len(logits))
	for _, category := range domain.DiseaseCategories() {
		logit, ok := logits[category]
		if !ok {
			continue
		}
		p := sigmoid(logit)
		if math.IsNaN(p) || p < threshold {
			continue
		}
		out = append(out, domain.DiseasePrediction{
			Disease:    category,
			Confidence: p,
			Severity:   domain.SeverityFromConfidence(p),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
