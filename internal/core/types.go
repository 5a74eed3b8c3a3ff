package core

import (
	"fmt"
	"strings"
)

// APIVersion is a version segment of the Gemini REST API.
type APIVersion string

const (
	APIVersionV1     APIVersion = "v1"
	APIVersionV1Beta APIVersion = "v1beta"
)

// Valid reports whether v is a version the bridge knows how to address.
func (v APIVersion) Valid() bool {
	return v == APIVersionV1 || v == APIVersionV1Beta
}

// Candidate is one (API version, model) pair the resolver may attempt.
type Candidate struct {
	APIVersion APIVersion `json:"api_version" mapstructure:"api_version"`
	Model      string     `json:"model" mapstructure:"model"`
}

// String returns the "version/model" form used in config and logs.
func (c Candidate) String() string {
	return string(c.APIVersion) + "/" + c.Model
}

// Validate checks that the candidate names a known version and a model.
func (c Candidate) Validate() error {
	if !c.APIVersion.Valid() {
		return fmt.Errorf("candidate %q: unsupported api version %q (expected %s or %s)",
			c.String(), c.APIVersion, APIVersionV1, APIVersionV1Beta)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("candidate %q: model is required", c.String())
	}
	return nil
}

// ParseCandidate parses "v1beta/gemini-2.5-flash". The "models/" prefix used by
// the models listing endpoint is accepted and stripped.
func ParseCandidate(s string) (Candidate, error) {
	version, model, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Candidate{}, fmt.Errorf("candidate %q: expected <api_version>/<model>", s)
	}
	c := Candidate{
		APIVersion: APIVersion(strings.TrimSpace(version)),
		Model:      strings.TrimPrefix(strings.TrimSpace(model), "models/"),
	}
	if err := c.Validate(); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// ParseCandidates parses a comma separated candidate list, preserving order.
// Empty entries are skipped.
func ParseCandidates(list string) ([]Candidate, error) {
	var candidates []Candidate
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		c, err := ParseCandidate(item)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// defaultModels is the preference order for models within each API version.
var defaultModels = []string{
	"gemini-2.5-flash",
	"gemini-flash-latest",
	"gemini-pro-latest",
	"gemini-2.0-flash",
}

// DefaultCandidates returns the built-in attempt order: every default model on
// v1beta first, then the same models on v1.
func DefaultCandidates() []Candidate {
	candidates := make([]Candidate, 0, 2*len(defaultModels))
	for _, version := range []APIVersion{APIVersionV1Beta, APIVersionV1} {
		for _, model := range defaultModels {
			candidates = append(candidates, Candidate{APIVersion: version, Model: model})
		}
	}
	return candidates
}

// ChatRequest is the body accepted by POST /chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by POST /chat on success
type ChatResponse struct {
	Response string `json:"response"`
}

// CandidatesResponse lists the configured attempt order
type CandidatesResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Model describes an upstream model that supports content generation
type Model struct {
	ID               string     `json:"id"`
	APIVersion       APIVersion `json:"api_version"`
	DisplayName      string     `json:"display_name,omitempty"`
	InputTokenLimit  int        `json:"input_token_limit,omitempty"`
	OutputTokenLimit int        `json:"output_token_limit,omitempty"`
}
