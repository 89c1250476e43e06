package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/infrastructure/httpjson"
	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	systemPrompt   = "You are a medical assistant providing recommendations based on medical reports."
)

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Executor    *resilience.Executor
}

// Generator calls an OpenAI-compatible chat completions endpoint.
type Generator struct {
	opts   Options
	client *httpjson.Client
}

func NewGenerator(opts Options) *Generator {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	return &Generator{
		opts:   opts,
		client: httpjson.New("openai", opts.BaseURL, 0).WithBearer(opts.APIKey),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(g.opts.APIKey) == "" {
		return "", errors.New("openai: api key is not configured")
	}

	payload := chatRequest{
		Model: g.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}

	policy := resilience.Policy{Timeout: g.opts.Timeout, Classifier: resilience.ClassifyHTTPError}
	text, err := resilience.Do(ctx, g.opts.Executor, "openai.chat", policy, func(callCtx context.Context) (string, error) {
		return g.complete(callCtx, payload)
	})
	if err != nil {
		return "", resilience.WrapTemporary("openai chat", err, nil)
	}
	return text, nil
}

func (g *Generator) complete(ctx context.Context, payload chatRequest) (string, error) {
	var out chatResponse
	if err := g.client.Post(ctx, "/chat/completions", "chat", payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai chat: response has no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai chat: empty completion")
	}
	return text, nil
}
