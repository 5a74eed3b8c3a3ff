// Package server provides HTTP handlers and server setup for the chat bridge.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatbridge/internal/core"
)

// Handler holds the HTTP handlers
type Handler struct {
	resolver core.Resolver
}

// NewHandler creates a new handler with the given resolver
func NewHandler(resolver core.Resolver) *Handler {
	return &Handler{
		resolver: resolver,
	}
}

// Chat handles POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req core.ChatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	message, err := core.ValidateMessage(req.Message)
	if err != nil {
		return handleError(c, err)
	}

	text, err := h.resolver.Resolve(c.Request().Context(), message)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, core.ChatResponse{Response: text})
}

// Candidates handles GET /candidates
func (h *Handler) Candidates(c echo.Context) error {
	return c.JSON(http.StatusOK, core.CandidatesResponse{Candidates: h.resolver.Candidates()})
}

// Health handles GET / and GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("unexpected error", "request_id", core.GetRequestID(c.Request().Context()), "error", err)

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
