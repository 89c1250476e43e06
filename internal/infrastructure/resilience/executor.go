package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Executor guards capability calls with per-attempt timeouts, bounded retries
// and one circuit breaker per operation name.
type Executor struct {
	retry   Retry
	breaker Breaker

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	def := DefaultConfig()
	return &Executor{
		retry:    cfg.Retry.withDefaults(def.Retry),
		breaker:  cfg.Breaker.withDefaults(def.Breaker),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Do runs fn through the executor and returns its value. A nil executor runs fn
// once, still honoring the policy timeout.
func Do[T any](ctx context.Context, e *Executor, operation string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	call := func(callCtx context.Context) error {
		v, err := fn(callCtx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}

	if err := e.Execute(ctx, operation, policy, call); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Execute runs fn under the policy. Like Do, a nil executor runs fn once.
func (e *Executor) Execute(ctx context.Context, operation string, policy Policy, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if e == nil {
		return attempt(ctx, policy.Timeout, fn)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if policy.Classifier == nil {
		policy.Classifier = defaultClassifier
	}

	if !e.breaker.Enabled {
		return e.retrying(ctx, op, policy, fn)
	}

	cb := e.circuitBreaker(op, policy.Classifier)
	_, err := cb.Execute(func() (any, error) {
		return nil, e.retrying(ctx, op, policy, fn)
	})
	return err
}

func (e *Executor) retrying(ctx context.Context, operation string, policy Policy, fn func(context.Context) error) error {
	wait := e.retry.Initial
	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = attempt(ctx, policy.Timeout, fn); err == nil {
			return nil
		}
		if n >= e.retry.Attempts || !policy.Classifier(err).Retryable {
			return err
		}

		slog.Warn("backend_call_retry",
			"operation", operation,
			"attempt", n,
			"max_attempts", e.retry.Attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
		wait = e.retry.next(wait)
	}
}

// sleep waits d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func attempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	b := e.breaker
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: b.HalfOpenMax,
		Timeout:     b.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= b.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("backend_breaker_state", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(err error) ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{}
	}
	return ErrorClassification{RecordFailure: true}
}
