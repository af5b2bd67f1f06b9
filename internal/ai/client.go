package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"stepwise/internal/config"
	"stepwise/internal/logging"
	"stepwise/internal/recipe"
	"stepwise/internal/schema"
	"stepwise/internal/services"
)

// Request states logged for every paced call.
const (
	StateAwaitingRateLimit = "awaiting_rate_limit"
	StateInFlight          = "in_flight"
	StateSuccess           = "success"
	StateRetryBackoff      = "retry_backoff"
	StateTimedOut          = "timed_out"
	StateFailed            = "failed"
)

const defaultRequestTimeout = 20 * time.Second

// Client wraps a Generator with pacing, retry and timeout.
type Client struct {
	gen     Generator
	pacer   *Pacer
	retry   RetryPolicy
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSleeper overrides how retry backoff waits.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a client. A nil pacer gets an unpaced one.
func NewClient(gen Generator, pacer *Pacer, opts ...Option) *Client {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	c := &Client{
		gen:     gen,
		pacer:   pacer,
		retry:   DefaultRetryPolicy(),
		timeout: defaultRequestTimeout,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ai")
	return c
}

// NewFromConfig wires a proxy-backed client from configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	gen := NewProxyGenerator(ProxyConfig{
		ProxyURL:   cfg.AI.ProxyURL,
		APIBaseURL: cfg.AI.APIBaseURL,
		Model:      cfg.AI.Model,
		APIKey:     cfg.AI.APIKey,
	}, nil)
	base, maxDelay := cfg.RetryBackoff()
	return NewClient(gen, NewPacer(cfg.MinDelay()),
		WithRetryPolicy(RetryPolicy{Attempts: cfg.AI.RetryAttempts, BaseDelay: base, MaxDelay: maxDelay}),
		WithTimeout(cfg.RequestTimeout()),
		WithLogger(logger),
	)
}

// SetAPIKey forwards a new credential to generators that accept one.
func (c *Client) SetAPIKey(key string) {
	if setter, ok := c.gen.(interface{ SetAPIKey(string) }); ok {
		setter.SetAPIKey(key)
	}
}

// Pacer returns the shared pacer.
func (c *Client) Pacer() *Pacer {
	return c.pacer
}

// AnalysisRequest describes the material to turn into tasks.
type AnalysisRequest struct {
	Transcript      string
	Title           string
	ProjectType     recipe.ProjectType
	DurationSeconds float64
}

// SubStepRequest describes a task or step to break down.
type SubStepRequest struct {
	TaskName    string
	Description string
	StepText    string
}

// SearchRequest describes a topic to find tutorials for.
type SearchRequest struct {
	Topic    string
	Platform string
}

// CountTokens reports how many tokens text would use.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	return run(ctx, c, "count_tokens", func(ctx context.Context) (int, error) {
		return c.gen.CountTokens(ctx, text)
	})
}

// AnalyzeTranscript generates the task list. Output that does not parse is an
// error. Every task and step gets a fresh id, timestamps past a known duration are clamped to it,
// and the list is sorted ascending by timestamp.
func (c *Client) AnalyzeTranscript(ctx context.Context, req AnalysisRequest) ([]recipe.Task, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, services.Wrap(services.ErrValidation, "analyze", "transcript", "transcript is empty", nil)
	}
	text, err := run(ctx, c, "analyze_transcript", func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, buildAnalysisPrompt(req), GenerateConfig{ResponseMIMEType: "application/json"})
	})
	if err != nil {
		return nil, err
	}
	stored, err := schema.SafeParseTasks(text)
	if err != nil {
		logging.WarnWithContext(c.logger, "analysis output rejected", "analysis_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry the analysis"),
			logging.String(logging.FieldImpact, "no tasks were created"),
		)
		return nil, fmt.Errorf("analyze transcript: %w", err)
	}
	tasks := recipe.NormalizeTasks(stored)
	recipe.AssignFreshIDs(tasks)
	if req.DurationSeconds > 0 {
		for i := range tasks {
			if tasks[i].TimestampSeconds > req.DurationSeconds {
				tasks[i].TimestampSeconds = req.DurationSeconds
			}
		}
	}
	recipe.SortTasks(tasks)
	return tasks, nil
}

// GenerateSubSteps breaks a task or step into 3 to 8 smaller actions. Output
// that does not fit yields an empty list; transport failures are returned.
func (c *Client) GenerateSubSteps(ctx context.Context, req SubStepRequest) ([]string, error) {
	text, err := run(ctx, c, "generate_sub_steps", func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, buildSubStepPrompt(req), GenerateConfig{ResponseMIMEType: "application/json"})
	})
	if err != nil {
		return nil, err
	}
	steps := schema.SafeParseSubSteps(text)
	if len(steps) == 0 {
		c.logger.Debug("sub-step output discarded", logging.String("task", req.TaskName))
	}
	return steps, nil
}

// GenerateSearchQueries suggests tutorial searches for a topic. Output that
// does not fit yields an empty list; transport failures are returned.
func (c *Client) GenerateSearchQueries(ctx context.Context, req SearchRequest) ([]string, error) {
	text, err := run(ctx, c, "generate_search_queries", func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, buildSearchPrompt(req), GenerateConfig{ResponseMIMEType: "application/json"})
	})
	if err != nil {
		return nil, err
	}
	return schema.SafeParseSearchQueries(text), nil
}

// ValidateKey lists the models available to the configured key.
func (c *Client) ValidateKey(ctx context.Context) ([]string, error) {
	return run(ctx, c, "list_models", func(ctx context.Context) ([]string, error) {
		return c.gen.ListModels(ctx)
	})
}

// run executes fn with pacing, retry and a per-attempt timeout.
func run[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, c.logger).With(logging.String("op", op))
	attempts := c.retry.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Debug("ai request", logging.String("state", StateAwaitingRateLimit), logging.Int("attempt", attempt))
		waited, err := c.pacer.Wait(ctx)
		if err != nil {
			return zero, err
		}

		logger.Debug("ai request", logging.String("state", StateInFlight), logging.Int("attempt", attempt), logging.Duration("paced", waited))
		result, err := withTimeout(ctx, c.timeout, fn)
		if err == nil {
			logger.Debug("ai request", logging.String("state", StateSuccess), logging.Int("attempt", attempt))
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err

		kind := services.Classify(err)
		if errors.Is(err, ErrTimedOut) {
			logger.Warn("ai request", logging.String("state", StateTimedOut), logging.Duration("timeout", c.timeout))
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		if !services.IsRetryable(kind) || attempt == attempts {
			break
		}

		delay := c.retry.delay(attempt, err)
		logger.Info("ai request",
			logging.String("state", StateRetryBackoff),
			logging.String("kind", string(kind)),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	logger.Warn("ai request",
		logging.String("state", StateFailed),
		logging.String("kind", string(services.Classify(lastErr))),
		logging.Error(lastErr),
	)
	return zero, fmt.Errorf("%s: %w", op, lastErr)
}

// withTimeout races fn against a timer. The attempt's context is cancelled
// and the timer stopped on every path.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		value, err := fn(attemptCtx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, ErrTimedOut
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
