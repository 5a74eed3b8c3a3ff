// Package core provides core types and interfaces for the chat bridge.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeProvider indicates an upstream failure (5xx, transport, unusable payload)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates an upstream rate limit (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeTimeout indicates an attempt that exceeded its deadline
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeCanceled indicates a candidate skipped because the caller went away
	ErrorTypeCanceled ErrorType = "request_canceled"
	// ErrorTypeConfiguration indicates missing credential or candidates
	ErrorTypeConfiguration ErrorType = "config_error"
	// ErrorTypeExhaustion indicates that every candidate failed
	ErrorTypeExhaustion ErrorType = "exhaustion_error"
)

// GatewayError is the base error type for all bridge errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// UpstreamStatus is the HTTP status returned by the provider, 0 when no response was received.
	UpstreamStatus int `json:"-"`
	// Attempts is only populated on exhaustion errors.
	Attempts []AttemptFailure `json:"attempts,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeExhaustion:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	body := map[string]interface{}{
		"type":    e.Type,
		"message": e.Message,
	}
	if len(e.Attempts) > 0 {
		body["attempts"] = e.Attempts
	}
	return map[string]interface{}{
		"error": body,
	}
}

// AttemptFailure records why a single candidate did not produce a response.
type AttemptFailure struct {
	APIVersion APIVersion `json:"api_version"`
	Model      string     `json:"model"`
	// StatusCode is the upstream HTTP status, 0 for transport failures and timeouts.
	StatusCode int           `json:"status_code"`
	Type       ErrorType     `json:"type"`
	Message    string        `json:"message"`
	Duration   time.Duration `json:"-"`
}

// NewAttemptFailure builds a failure record for candidate c from the error returned by the attempt.
func NewAttemptFailure(c Candidate, err error, d time.Duration) AttemptFailure {
	f := AttemptFailure{
		APIVersion: c.APIVersion,
		Model:      c.Model,
		Type:       ErrorTypeProvider,
		Duration:   d,
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		f.Type = gwErr.Type
		f.Message = gwErr.Message
		f.StatusCode = gwErr.UpstreamStatus
		return f
	}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

// String renders the failure as a single log-friendly line.
func (f AttemptFailure) String() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s/%s: HTTP %d %s: %s", f.APIVersion, f.Model, f.StatusCode, f.Type, f.Message)
	}
	return fmt.Sprintf("%s/%s: %s: %s", f.APIVersion, f.Model, f.Type, f.Message)
}

// NewProviderError creates a new provider error (upstream 5xx or transport failure)
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:           ErrorTypeRateLimit,
		Message:        message,
		StatusCode:     http.StatusTooManyRequests,
		UpstreamStatus: http.StatusTooManyRequests,
		Provider:       provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates a new invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewTimeoutError creates an error for an attempt that ran past its deadline
func NewTimeoutError(provider string, timeout time.Duration, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("request timed out after %s", timeout),
		StatusCode: http.StatusGatewayTimeout,
		Provider:   provider,
		Err:        err,
	}
}

// NewConfigurationError creates an error for a bridge that cannot serve requests as configured
func NewConfigurationError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeConfiguration,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewExhaustionError creates the error returned once every candidate has failed
func NewExhaustionError(attempts []AttemptFailure) *GatewayError {
	return &GatewayError{
		Type: ErrorTypeExhaustion,
		Message: fmt.Sprintf("failed to get a response from any of %d candidate models; check the API key and model availability",
			len(attempts)),
		StatusCode: http.StatusServiceUnavailable,
		Attempts:   attempts,
	}
}

// ParseProviderError parses an error response from a provider and returns an appropriate GatewayError.
// Both the OpenAI shape {"error":{"message","type"}} and the Google shape
// {"error":{"code","message","status"}} are understood.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := string(body)
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
			message = m.String()
			if s := gjson.GetBytes(body, "error.status"); s.Exists() && s.String() != "" {
				message = s.String() + ": " + message
			}
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	var gwErr *GatewayError
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		gwErr = NewAuthenticationError(provider, message)
	case statusCode == http.StatusTooManyRequests:
		gwErr = NewRateLimitError(provider, message)
	case statusCode == http.StatusNotFound:
		gwErr = NewNotFoundError(message)
		gwErr.Provider = provider
	case statusCode >= 400 && statusCode < 500:
		// Client errors from provider - preserve both provider info and original status code
		gwErr = NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
		gwErr.Provider = provider
	default:
		gwErr = NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
	gwErr.UpstreamStatus = statusCode
	return gwErr
}
