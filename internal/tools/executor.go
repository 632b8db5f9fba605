package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/golemcore/agentd/pkg/models"
)

const (
	// DefaultTimeout bounds a single tool invocation.
	DefaultTimeout = 30 * time.Second

	defaultMaxConcurrent = 8
)

// Executor runs tool calls with a per-call timeout, panic isolation,
// and a concurrency cap. A misbehaving tool can neither crash nor
// starve the agent.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	sem      chan struct{}
	logger   *slog.Logger
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxConcurrent overrides the concurrency cap.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.sem = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		timeout:  DefaultTimeout,
		sem:      make(chan struct{}, defaultMaxConcurrent),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one tool call to completion. Tool failures, timeouts,
// and panics all come back as failed results; the returned error is
// non-nil only when the surrounding context was cancelled before the
// call could run.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return models.ToolFailure(
			models.ToolFailureExecutionFailed,
			fmt.Sprintf("unknown tool %q (available: %v)", call.Name, e.registry.Names()),
		), nil
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return models.ToolResult{}, ctx.Err()
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
		err    error
	}
	resultCh := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool panicked",
					"tool", call.Name,
					"panic", r,
					"stack", string(debug.Stack()))
				resultCh <- outcome{
					result: models.ToolFailure(
						models.ToolFailureExecutionFailed,
						fmt.Sprintf("tool %s panicked: %v", call.Name, r),
					),
				}
			}
		}()
		res, err := tool.Execute(callCtx, call.Arguments)
		resultCh <- outcome{result: res, err: err}
	}()

	select {
	case out := <-resultCh:
		if out.err != nil {
			return models.ToolFailure(models.ToolFailureExecutionFailed, out.err.Error()), nil
		}
		e.logger.Debug("tool executed",
			"tool", call.Name,
			"success", out.result.Success,
			"duration", time.Since(start))
		return out.result, nil
	case <-callCtx.Done():
		e.logger.Warn("tool timed out", "tool", call.Name, "timeout", e.timeout)
		return models.ToolFailure(
			models.ToolFailureTimeout,
			fmt.Sprintf("tool %s timed out after %s", call.Name, e.timeout),
		), nil
	}
}
