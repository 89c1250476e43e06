package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
)

// SubmitAnalysisUseCase stores an upload and queues it for the worker.
type SubmitAnalysisUseCase struct {
	policy  UploadPolicy
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewSubmitAnalysisUseCase(
	policy UploadPolicy,
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitAnalysisUseCase {
	return &SubmitAnalysisUseCase{
		policy:  policy,
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *SubmitAnalysisUseCase) Submit(ctx context.Context, filename string, body io.Reader) (*domain.AnalysisJob, error) {
	format, err := uc.policy.Validate(filename, -1)
	if err != nil {
		return nil, err
	}
	content, err := uc.policy.ReadLimited(body)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.AnalysisJob{
		ID:          id,
		Filename:    filename,
		Format:      format,
		StoragePath: storageKey,
		Status:      domain.JobQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create analysis job: %w", err)
	}

	if err := uc.queue.PublishJobQueued(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish analysis job: %w", err)
	}

	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "report.bin"
	}
	return base
}
