package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

const defaultPromptTextLimit = 1000

// GenerationBackend is a named text generator. ModelUsed on the result carries
// the name of the backend that answered.
type GenerationBackend struct {
	Name      string
	Generator ports.TextGenerator
}

type SynthesizerOptions struct {
	Timeout         time.Duration
	PromptTextLimit int
}

// RecommendationSynthesizer tries its backends in order until one answers.
type RecommendationSynthesizer struct {
	backends []GenerationBackend
	opts     SynthesizerOptions
}

func NewRecommendationSynthesizer(backends []GenerationBackend, opts SynthesizerOptions) *RecommendationSynthesizer {
	if opts.PromptTextLimit <= 0 {
		opts.PromptTextLimit = defaultPromptTextLimit
	}
	active := make([]GenerationBackend, 0, len(backends))
	for _, b := range backends {
		if b.Generator != nil {
			active = append(active, b)
		}
	}
	return &RecommendationSynthesizer{backends: active, opts: opts}
}

func (s *RecommendationSynthesizer) Synthesize(ctx context.Context, text string, predictions []domain.DiseasePrediction) domain.RecommendationSet {
	if len(s.backends) == 0 {
		return failedRecommendations("no generation backend configured")
	}

	prompt := BuildRecommendationPrompt(text, predictions, s.opts.PromptTextLimit)
	var failures []string
	for _, backend := range s.backends {
		generated, err := s.generate(ctx, backend, prompt)
		if err != nil {
			slog.Warn("generation_backend_failed", "backend", backend.Name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", backend.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return domain.RecommendationSet{
			Categories: ParseRecommendations(generated),
			ModelUsed:  backend.Name,
		}
	}
	return failedRecommendations(strings.Join(failures, "; "))
}

func (s *RecommendationSynthesizer) generate(ctx context.Context, backend GenerationBackend, prompt string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	callCtx, cancel := withOptionalTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return backend.Generator.Generate(callCtx, prompt)
}

func failedRecommendations(reason string) domain.RecommendationSet {
	return domain.RecommendationSet{
		Categories: []domain.RecommendationGroup{},
		Error:      "Failed to generate recommendations: " + reason,
	}
}

// BuildRecommendationPrompt embeds the predicted conditions and a bounded,
// anonymized prefix of the report.
func BuildRecommendationPrompt(text string, predictions []domain.DiseasePrediction, limit int) string {
	conditions := "none identified; base the guidance on the report text only"
	if len(predictions) > 0 {
		names := make([]string, 0, len(predictions))
		for _, p := range predictions {
			names = append(names, p.Disease.String())
		}
		conditions = strings.Join(names, ", ")
	}

	excerpt := AnonymizeText(text)
	if runes := []rune(excerpt); limit > 0 && len(runes) > limit {
		excerpt = string(runes[:limit]) + "..."
	}

	return fmt.Sprintf(`Based on the medical report and predicted conditions: %s

Medical Report Text:
%s

Please provide:
1. Key medical recommendations
2. Suggested follow-up tests
3. Lifestyle modifications
4. Potential medication considerations (general classes only)
5. Warning signs to watch for

Write each section as a heading line followed by bullet lines starting with "- ".
`, conditions, excerpt)
}

var categoryKeywords = []struct {
	keyword  string
	category domain.RecommendationCategory
}{
	{"recommendation", domain.CategoryMedical},
	{"test", domain.CategoryTests},
	{"lifestyle", domain.CategoryLifestyle},
	{"medication", domain.CategoryMedications},
	{"warning", domain.CategoryWarnings},
}

var bulletMarkers = []string{"- ", "* ", "• "}

// recommendationParser is a line-driven state machine. The empty category is
// the initial state in which bullet lines are ignored.
type recommendationParser struct {
	current domain.RecommendationCategory
	items   map[domain.RecommendationCategory][]string
}

func (p *recommendationParser) feed(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if p.current != "" {
		if item, ok := stripBullet(line); ok {
			if item != "" {
				p.items[p.current] = append(p.items[p.current], item)
			}
			return
		}
	}
	if category, ok := headingCategory(line); ok {
		p.current = category
	}
}

func (p *recommendationParser) groups() []domain.RecommendationGroup {
	out := []domain.RecommendationGroup{}
	for _, category := range domain.RecommendationCategories() {
		if items := p.items[category]; len(items) > 0 {
			out = append(out, domain.RecommendationGroup{Category: category, Items: items})
		}
	}
	return out
}

// ParseRecommendations groups generated bullet lines under the most recent
// category heading. Empty categories are omitted.
func ParseRecommendations(generated string) []domain.RecommendationGroup {
	p := &recommendationParser{items: make(map[domain.RecommendationCategory][]string)}
	for _, line := range strings.Split(generated, "\n") {
		p.feed(line)
	}
	return p.groups()
}

func headingCategory(line string) (domain.RecommendationCategory, bool) {
	lower := strings.ToLower(line)
	for _, k := range categoryKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.category, true
		}
	}
	return "", false
}

func stripBullet(line string) (string, bool) {
	for _, marker := range bulletMarkers {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}
