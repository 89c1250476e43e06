// Package hfapi talks to a Hugging Face style inference server
// (POST /models/{model} with {"inputs", "parameters"}).
package hfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/infrastructure/httpjson"
	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
)

type Models struct {
	Classifier string
	NER        string
	QA         string
	Summary    string
}

type Options struct {
	APIKey   string
	Executor *resilience.Executor
}

// Client serves the label scoring, token classification, question answering
// and summarization capabilities from one inference server.
type Client struct {
	models Models
	opts   Options
	client *httpjson.Client
}

func New(baseURL string, models Models, opts Options) *Client {
	return &Client{
		models: models,
		opts:   opts,
		client: httpjson.New("hfapi", baseURL, 0).WithBearer(opts.APIKey),
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score asks for raw logits (function_to_apply=none) so categories can be
// scored independently downstream. Unknown labels are skipped.
func (c *Client) Score(ctx context.Context, window string) (map[domain.DiseaseCategory]float64, error) {
	payload := map[string]any{
		"inputs": window,
		"parameters": map[string]any{
			"function_to_apply": "none",
			"top_k":             nil,
		},
	}

	var raw json.RawMessage
	if err := c.call(ctx, "classify", c.models.Classifier, payload, &raw); err != nil {
		return nil, err
	}
	scores, err := decodeLabelScores(raw)
	if err != nil {
		return nil, err
	}

	logits := make(map[domain.DiseaseCategory]float64, len(scores))
	for _, s := range scores {
		category, ok := domain.ParseDiseaseCategory(s.Label)
		if !ok {
			slog.Debug("classifier_label_skipped", "label", s.Label)
			continue
		}
		logits[category] = s.Score
	}
	return logits, nil
}

// decodeLabelScores accepts both the flat and the batched ([[...]]) shapes.
func decodeLabelScores(raw json.RawMessage) ([]labelScore, error) {
	var batched [][]labelScore
	if err := json.Unmarshal(raw, &batched); err == nil {
		if len(batched) == 0 {
			return nil, nil
		}
		return batched[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	return flat, nil
}

func (c *Client) ClassifyTokens(ctx context.Context, text string) ([]domain.TokenLabel, error) {
	payload := map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"aggregation_strategy": "simple",
		},
	}
	var labels []domain.TokenLabel
	if err := c.call(ctx, "ner", c.models.NER, payload, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Client) Answer(ctx context.Context, question, contextText string) (domain.Answer, error) {
	payload := map[string]any{
		"inputs": map[string]string{
			"question": question,
			"context":  contextText,
		},
	}
	var answer domain.Answer
	if err := c.call(ctx, "qa", c.models.QA, payload, &answer); err != nil {
		return domain.Answer{}, err
	}
	return answer, nil
}

func (c *Client) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	payload := map[string]any{
		"inputs": text,
		"parameters": map[string]any{
			"min_length": minLength,
			"max_length": maxLength,
			"do_sample":  false,
		},
	}
	var out []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := c.call(ctx, "summarize", c.models.Summary, payload, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || strings.TrimSpace(out[0].SummaryText) == "" {
		return "", errors.New("hfapi summarize: empty summary")
	}
	return strings.TrimSpace(out[0].SummaryText), nil
}

func (c *Client) call(ctx context.Context, operation, model string, payload any, out any) error {
	if strings.TrimSpace(model) == "" {
		return domain.WrapError(domain.ErrCapabilityUnavailable, "hfapi "+operation, errors.New("model is not configured"))
	}
	policy := resilience.Policy{Classifier: resilience.ClassifyHTTPError}
	err := c.opts.Executor.Execute(ctx, "hfapi."+operation, policy, func(callCtx context.Context) error {
		return c.client.Post(callCtx, "/models/"+model, operation, payload, out)
	})
	if err != nil {
		return resilience.WrapTemporary("hfapi "+operation, err, nil)
	}
	return nil
}
