// Package core defines the core interfaces and types for the chat bridge.
package core

import "context"

// GenerateRequest is a single generation attempt against one candidate.
type GenerateRequest struct {
	APIKey    string
	Candidate Candidate
	Prompt    string
}

// Generator performs one attempt against the upstream text generation service.
// Implementations must honor ctx cancellation and return a *GatewayError
// describing the failure, or the generated text.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

// ModelLister is implemented by generators that can enumerate upstream models.
type ModelLister interface {
	ListModels(ctx context.Context, apiKey string, version APIVersion) ([]Model, error)
}

// Resolver turns a validated message into generated text.
type Resolver interface {
	Resolve(ctx context.Context, message string) (string, error)

	// Candidates returns the configured attempt order
	Candidates() []Candidate
}
