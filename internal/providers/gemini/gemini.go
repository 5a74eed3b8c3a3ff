// Package gemini provides Google Gemini generateContent integration for the chat bridge.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"chatbridge/internal/core"
	"chatbridge/internal/pkg/llmclient"
)

const (
	providerName = "gemini"

	// DefaultBaseURL is the public Generative Language API host
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	apiKeyHeader = "x-goog-api-key"

	modelsPageSize = 1000
)

// Provider issues single generateContent attempts against one candidate at a time.
// It holds no credential; the key travels with each request.
type Provider struct {
	client *llmclient.Client
}

// New creates a new Gemini provider using the shared default transport
func New() *Provider {
	return &Provider{
		client: llmclient.New(llmclient.DefaultConfig(providerName, DefaultBaseURL), nil),
	}
}

// NewWithHTTPClient creates a new Gemini provider with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client) *Provider {
	return &Provider{
		client: llmclient.NewWithHTTPClient(httpClient, llmclient.DefaultConfig(providerName, DefaultBaseURL), nil),
	}
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(baseURL string) {
	p.client.SetBaseURL(strings.TrimRight(baseURL, "/"))
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Generate sends the prompt to {base}/{version}/models/{model}:generateContent
// and returns the concatenated text parts of the first candidate.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (string, error) {
	resp, err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: generateEndpoint(req.Candidate),
		Body: generateRequest{
			Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
		},
		Headers: map[string]string{apiKeyHeader: req.APIKey},
	})
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", core.ParseProviderError(providerName, resp.StatusCode, resp.Body, nil)
	}

	text, err := extractText(resp.Body)
	if err != nil {
		gwErr := core.NewProviderError(providerName, http.StatusBadGateway, err.Error(), nil)
		gwErr.UpstreamStatus = resp.StatusCode
		return "", gwErr
	}
	return text, nil
}

func generateEndpoint(c core.Candidate) string {
	return fmt.Sprintf("/%s/models/%s:generateContent", c.APIVersion, url.PathEscape(c.Model))
}

// extractText pulls the generated text out of a generateContent payload.
// Thought parts are skipped. A payload without text is an error so the
// caller can move on to the next candidate.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("response was not valid JSON")
	}
	root := gjson.ParseBytes(body)

	if reason := root.Get("promptFeedback.blockReason"); reason.Exists() && reason.String() != "" {
		return "", fmt.Errorf("prompt blocked: %s", reason.String())
	}

	first := root.Get("candidates.0")
	if !first.Exists() {
		return "", fmt.Errorf("response contained no candidates")
	}

	var sb strings.Builder
	first.Get("content.parts").ForEach(func(_, p gjson.Result) bool {
		if p.Get("thought").Bool() {
			return true
		}
		sb.WriteString(p.Get("text").String())
		return true
	})
	if sb.Len() > 0 {
		return sb.String(), nil
	}

	switch finish := first.Get("finishReason").String(); finish {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return "", fmt.Errorf("response blocked by safety filters (%s)", finish)
	default:
		return "", fmt.Errorf("response contained no text")
	}
}

// geminiModel represents a model in Gemini's native API response
type geminiModel struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName"`
	SupportedMethods []string `json:"supportedGenerationMethods"`
	InputTokenLimit  int      `json:"inputTokenLimit"`
	OutputTokenLimit int      `json:"outputTokenLimit"`
}

// geminiModelsResponse represents the native Gemini models list response
type geminiModelsResponse struct {
	Models        []geminiModel `json:"models"`
	NextPageToken string        `json:"nextPageToken"`
}

// ListModels returns every model on the given API version that supports generateContent,
// following pagination until the listing is complete.
func (p *Provider) ListModels(ctx context.Context, apiKey string, version core.APIVersion) ([]core.Model, error) {
	var models []core.Model
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(modelsPageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page geminiModelsResponse
		err := p.client.DoJSON(ctx, llmclient.Request{
			Method:   http.MethodGet,
			Endpoint: "/" + string(version) + "/models?" + q.Encode(),
			Headers:  map[string]string{apiKeyHeader: apiKey},
		}, &page)
		if err != nil {
			return nil, err
		}

		for _, gm := range page.Models {
			if !supportsGenerate(gm.SupportedMethods) {
				continue
			}
			models = append(models, core.Model{
				ID:               strings.TrimPrefix(gm.Name, "models/"),
				APIVersion:       version,
				DisplayName:      gm.DisplayName,
				InputTokenLimit:  gm.InputTokenLimit,
				OutputTokenLimit: gm.OutputTokenLimit,
			})
		}

		if page.NextPageToken == "" {
			return models, nil
		}
		pageToken = page.NextPageToken
	}
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
