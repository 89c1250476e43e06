package ports

import (
	"context"
	"io"

	"github.com/medinsight/report-analyzer/internal/core/domain"
)

// ReportAnalyzer runs the synchronous analysis pipeline.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, doc domain.Document) (*domain.PipelineResult, error)
}

// JobSubmitter accepts uploads for asynchronous analysis.
type JobSubmitter interface {
	Submit(ctx context.Context, filename string, body io.Reader) (*domain.AnalysisJob, error)
}

// JobReader is the read model for async jobs.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error)
}

// JobProcessor runs a queued job to completion.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
