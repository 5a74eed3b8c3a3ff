package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"chatbridge/internal/core"
	"chatbridge/internal/pkg/llmclient"
)

// LocalSender validates and resolves messages in-process.
type LocalSender struct {
	resolver core.Resolver
}

// NewLocalSender creates a sender backed by resolver
func NewLocalSender(resolver core.Resolver) *LocalSender {
	return &LocalSender{resolver: resolver}
}

// Send validates message and resolves it
func (s *LocalSender) Send(ctx context.Context, message string) (string, error) {
	message, err := core.ValidateMessage(message)
	if err != nil {
		return "", err
	}
	ctx = core.WithRequestID(ctx, core.EnsureRequestID(core.GetRequestID(ctx)))
	return s.resolver.Resolve(ctx, message)
}

// RemoteSender posts messages to a running chatbridge server.
type RemoteSender struct {
	client *llmclient.Client
}

// NewRemoteSender creates a sender for the server at baseURL. masterKey is sent
// as a bearer token when non-empty.
func NewRemoteSender(baseURL, masterKey string) *RemoteSender {
	var headers llmclient.HeaderSetter
	if masterKey != "" {
		headers = func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+masterKey)
		}
	}
	return &RemoteSender{
		client: llmclient.New(llmclient.DefaultConfig("chatbridge", strings.TrimRight(baseURL, "/")), headers),
	}
}

// Send posts message to {base}/chat and returns the response text
func (s *RemoteSender) Send(ctx context.Context, message string) (string, error) {
	resp, err := s.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat",
		Body:     core.ChatRequest{Message: message},
		Headers:  map[string]string{core.RequestIDHeader: core.EnsureRequestID(core.GetRequestID(ctx))},
	})
	if err != nil {
		return "", fmt.Errorf("failed to connect to server at %s (is it running?): %w", s.client.BaseURL(), err)
	}

	if !resp.IsSuccess() {
		return "", serverError(resp)
	}

	text := gjson.GetBytes(resp.Body, "response")
	if text.Type != gjson.String {
		return "", fmt.Errorf("invalid response format from server")
	}
	return text.String(), nil
}

// serverError decodes the server's error envelope, falling back to the raw body.
func serverError(resp *llmclient.Response) error {
	if raw := gjson.GetBytes(resp.Body, "error"); raw.IsObject() {
		var gwErr core.GatewayError
		if err := json.Unmarshal([]byte(raw.Raw), &gwErr); err == nil && gwErr.Message != "" {
			gwErr.StatusCode = resp.StatusCode
			return &gwErr
		}
	}
	body := strings.TrimSpace(string(resp.Body))
	if body == "" {
		body = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, body)
}
