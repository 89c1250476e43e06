package ollama

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/infrastructure/httpjson"
	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
)

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Executor    *resilience.Executor
}

// Generator is the local text generation backend served by Ollama.
type Generator struct {
	opts   Options
	client *httpjson.Client
}

func NewGenerator(baseURL string, opts Options) *Generator {
	return &Generator{
		opts:   opts,
		client: httpjson.New("ollama", baseURL, 0),
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  g.opts.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: g.opts.Temperature,
			NumPredict:  g.opts.MaxTokens,
		},
	}

	policy := resilience.Policy{Timeout: g.opts.Timeout, Classifier: resilience.ClassifyHTTPError}
	text, err := resilience.Do(ctx, g.opts.Executor, "ollama.generate", policy, func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := g.client.Post(callCtx, "/api/generate", "generate", req, &response); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	})
	if err != nil {
		return "", resilience.WrapTemporary("ollama generate", err, nil)
	}
	if text == "" {
		return "", errors.New("ollama generate: empty response")
	}
	return text, nil
}
