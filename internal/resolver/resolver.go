// Package resolver implements the ordered fallback across Gemini candidates.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chatbridge/internal/core"
)

// DefaultAttemptTimeout bounds a single candidate attempt when none is configured.
const DefaultAttemptTimeout = 30 * time.Second

// Config is everything the resolver needs. It is never read from the environment.
type Config struct {
	APIKey         string
	Candidates     []core.Candidate
	AttemptTimeout time.Duration
}

// Outcome labels recorded for each attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Result labels recorded once per resolution.
const (
	ResultSuccess   = "success"
	ResultExhausted = "exhausted"
	ResultConfig    = "config_error"
)

// Hooks observes the fallback loop. Implementations must be safe for concurrent use.
type Hooks interface {
	OnAttempt(c core.Candidate, outcome string, d time.Duration)
	OnResolution(result string)
}

type noopHooks struct{}

func (noopHooks) OnAttempt(core.Candidate, string, time.Duration) {}
func (noopHooks) OnResolution(string)                             {}

// Resolver tries each candidate in order and returns the first generated text.
type Resolver struct {
	apiKey     string
	candidates []core.Candidate
	timeout    time.Duration
	generator  core.Generator
	hooks      Hooks
}

// New creates a resolver. The candidate slice is copied so later changes by the
// caller do not affect the attempt order. hooks may be nil.
func New(cfg Config, generator core.Generator, hooks Hooks) *Resolver {
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	candidates := make([]core.Candidate, len(cfg.Candidates))
	copy(candidates, cfg.Candidates)

	return &Resolver{
		apiKey:     cfg.APIKey,
		candidates: candidates,
		timeout:    timeout,
		generator:  generator,
		hooks:      hooks,
	}
}

// Validate reports a configuration that can never produce a response.
func (r *Resolver) Validate() error {
	if r.apiKey == "" {
		return core.NewConfigurationError("GEMINI_API_KEY is not set")
	}
	if len(r.candidates) == 0 {
		return core.NewConfigurationError("no candidate models configured")
	}
	return nil
}

// Candidates returns a copy of the attempt order.
func (r *Resolver) Candidates() []core.Candidate {
	out := make([]core.Candidate, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// AttemptTimeout returns the per-candidate deadline.
func (r *Resolver) AttemptTimeout() time.Duration {
	return r.timeout
}

// Resolve sends message to each candidate in order and returns the first text produced.
// The message must already be validated. On failure the error is a *core.GatewayError of
// type config_error or exhaustion_error; exhaustion carries one failure per candidate.
func (r *Resolver) Resolve(ctx context.Context, message string) (string, error) {
	if err := r.Validate(); err != nil {
		r.hooks.OnResolution(ResultConfig)
		return "", err
	}

	logger := slog.Default().With("request_id", core.GetRequestID(ctx))
	failures := make([]core.AttemptFailure, 0, len(r.candidates))

	for i, candidate := range r.candidates {
		if ctx.Err() != nil {
			for _, skipped := range r.candidates[i:] {
				failures = append(failures, core.AttemptFailure{
					APIVersion: skipped.APIVersion,
					Model:      skipped.Model,
					Type:       core.ErrorTypeCanceled,
					Message:    "request canceled before attempt: " + ctx.Err().Error(),
				})
			}
			logger.Warn("resolution canceled",
				"attempted", i,
				"skipped", len(r.candidates)-i,
				"error", ctx.Err(),
			)
			break
		}

		start := time.Now()
		text, err := r.attempt(ctx, candidate, message)
		elapsed := time.Since(start)
		if err == nil {
			r.hooks.OnAttempt(candidate, OutcomeSuccess, elapsed)
			r.hooks.OnResolution(ResultSuccess)
			logger.Info("candidate succeeded",
				"api_version", candidate.APIVersion,
				"model", candidate.Model,
				"attempt", i+1,
				"duration", elapsed,
			)
			return text, nil
		}

		failure := core.NewAttemptFailure(candidate, err, elapsed)
		r.hooks.OnAttempt(candidate, OutcomeFailure, elapsed)
		logger.Warn("candidate failed",
			"api_version", candidate.APIVersion,
			"model", candidate.Model,
			"attempt", i+1,
			"status", failure.StatusCode,
			"type", failure.Type,
			"error", failure.Message,
			"duration", elapsed,
		)
		failures = append(failures, failure)
	}

	r.hooks.OnResolution(ResultExhausted)
	logger.Error("all candidates failed", "candidates", len(r.candidates))
	return "", core.NewExhaustionError(failures)
}

// attempt runs one candidate under its own deadline. A deadline hit while the
// caller is still waiting is reported as a timeout rather than a transport error.
func (r *Resolver) attempt(ctx context.Context, candidate core.Candidate, message string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.generator.Generate(attemptCtx, &core.GenerateRequest{
		APIKey:    r.apiKey,
		Candidate: candidate,
		Prompt:    message,
	})
	if err == nil {
		return text, nil
	}

	switch {
	case ctx.Err() != nil:
		return "", &core.GatewayError{
			Type:    core.ErrorTypeCanceled,
			Message: "request canceled: " + ctx.Err().Error(),
			Err:     err,
		}
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return "", core.NewTimeoutError("gemini", r.timeout, err)
	default:
		return "", err
	}
}
