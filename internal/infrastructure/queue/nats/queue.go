package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
)

const (
	workerQueueGroup = "report-analyzers"
	jobIDHeader      = "Report-Job-Id"
	drainTimeout     = 5 * time.Second
)

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

// Queue hands analysis jobs from the API to the worker pool. Workers share one
// queue group so each job is delivered to a single worker.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

func New(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, connectOptions(options)...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		now:      time.Now,
	}, nil
}

func connectOptions(options Options) []nats.Option {
	timeout := options.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	wait := options.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	reconnects := options.MaxReconnects
	if reconnects <= 0 {
		reconnects = 60
	}
	return []nats.Option{
		nats.Name("report-analyzer"),
		nats.Timeout(timeout),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(reconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishJobQueued(ctx context.Context, jobID string) error {
	msg, err := encodeJob(q.subject, domain.QueuedJob{JobID: jobID, EnqueuedAt: q.now().UTC()})
	if err != nil {
		return err
	}

	policy := resilience.Policy{Classifier: classifyNATSError}
	err = q.executor.Execute(ctx, "nats.publish", policy, func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	})
	return wrapTemporaryIfNeeded(err)
}

// SubscribeJobQueued blocks until ctx is done, then drains in-flight messages.
func (q *Queue) SubscribeJobQueued(ctx context.Context, handler func(context.Context, domain.QueuedJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		job, err := decodeJob(msg)
		if err != nil {
			slog.Error("analysis_job_message_invalid", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, job); err != nil {
			slog.Error("analysis_job_handler_failed", "job_id", job.JobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeJob(subject string, job domain.QueuedJob) (*nats.Msg, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode queued job: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(jobIDHeader, job.JobID)
	msg.Data = data
	return msg, nil
}

// decodeJob also accepts a bare job id body.
func decodeJob(msg *nats.Msg) (domain.QueuedJob, error) {
	var job domain.QueuedJob
	body := strings.TrimSpace(string(msg.Data))
	if strings.HasPrefix(body, "{") {
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			return domain.QueuedJob{}, fmt.Errorf("decode queued job: %w", err)
		}
	} else {
		job.JobID = body
	}
	if job.JobID == "" && msg.Header != nil {
		job.JobID = msg.Header.Get(jobIDHeader)
	}
	if job.JobID == "" {
		return domain.QueuedJob{}, fmt.Errorf("decode queued job: empty job id")
	}
	return job, nil
}
