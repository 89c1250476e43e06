package ports

import (
	"context"
	"io"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// PageSource splits a paged document into raw pages in page order.
type PageSource interface {
	Pages(ctx context.Context, content []byte) ([]domain.RawPage, error)
}

// PageRecognizer converts one page into plain text.
type PageRecognizer interface {
	Recognize(ctx context.Context, page domain.RawPage) (domain.Recognition, error)
}

// LabelScorer returns one raw logit per disease category for the given window.
// Categories missing from the result are treated as not scored.
type LabelScorer interface {
	Score(ctx context.Context, window string) (map[domain.DiseaseCategory]float64, error)
}

// TokenClassifier tags medical entities in free text.
type TokenClassifier interface {
	ClassifyTokens(ctx context.Context, text string) ([]domain.TokenLabel, error)
}

// QuestionAnswerer runs extractive question answering over a context text.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, contextText string) (domain.Answer, error)
}

// Summarizer produces an abstractive summary bounded in tokens.
type Summarizer interface {
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
}

// TextGenerator turns a prompt into free text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// JobRepository persists async analysis jobs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result *domain.PipelineResult) error
}

// ObjectStorage stores uploaded payloads for async jobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes and consumes queued analysis jobs.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, domain.QueuedJob) error) error
}

// ResultExporter renders a pipeline result into a downloadable file.
type ResultExporter interface {
	Export(result *domain.PipelineResult) ([]byte, error)
	ContentType() string
}
