package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

// ProcessJobUseCase runs a queued job through the analysis pipeline and
// stores the outcome on the job row.
type ProcessJobUseCase struct {
	repo     ports.JobRepository
	storage  ports.ObjectStorage
	analyzer ports.ReportAnalyzer
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	analyzer ports.ReportAnalyzer,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.repo.UpdateStatus(ctx, jobID, domain.JobProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.run(ctx, jobID)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResult(ctx, jobID, result); err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *ProcessJobUseCase) run(ctx context.Context, jobID string) (*domain.PipelineResult, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch job by id: %w", err)
	}

	content, err := uc.load(ctx, job.StoragePath)
	if err != nil {
		return nil, err
	}

	result, err := uc.analyzer.Analyze(ctx, domain.Document{
		Filename: job.Filename,
		Format:   job.Format,
		Content:  content,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze report: %w", err)
	}
	return result, nil
}

func (uc *ProcessJobUseCase) load(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open stored upload: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored upload: %w", err)
	}
	return content, nil
}

// markFailed stores a caller-safe message; internal detail goes to the log.
func (uc *ProcessJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	slog.Error("analysis_job_failed", "job_id", jobID, "error", processErr)
	return uc.repo.UpdateStatus(ctx, jobID, domain.JobFailed, PublicMessage(processErr))
}

// PublicMessage returns the message of the first UserError in the chain or a
// generic message otherwise.
func PublicMessage(err error) string {
	var userErr *domain.UserError
	if errors.As(err, &userErr) {
		return userErr.Message
	}
	return "Analysis failed"
}
