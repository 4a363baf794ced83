// Package v1 provides the versioned HTTP handlers.
package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/agentkit/internal/domain"
	"github.com/xiaot623/agentkit/internal/service"
)

const version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service     *service.Service
	stateAPIKey string
}

// NewHandler creates a new handler. An empty stateAPIKey leaves the state
// ingestion routes unmounted.
func NewHandler(service *service.Service, stateAPIKey string) *Handler {
	return &Handler{
		service:     service,
		stateAPIKey: stateAPIKey,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	// Agent directory API
	e.POST("/v1/agents/register", h.RegisterAgent)
	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.DELETE("/v1/agents/:agent_id", h.DeregisterAgent)

	// Messaging API
	e.POST("/v1/agents/:agent_id/run", h.RunAgent)

	// Tool API
	e.GET("/v1/tools", h.ListTools)

	if h.stateAPIKey == "" {
		// Diagnostics stay open only when no key is configured.
		e.GET("/v1/deliveries", h.ListDeliveries)
		return
	}

	auth := h.bearerAuth()
	e.GET("/v1/deliveries", h.ListDeliveries, auth)

	state := e.Group("/v1/agents/:agent_id/state", auth)
	state.POST("", h.ReportState)
	state.GET("", h.GetState)
}

// Root returns a welcome message.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Welcome to AgentKit API",
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if err := h.service.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// errorResponse writes err as an API response with the status its kind maps to.
func errorResponse(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	message := err.Error()
	var appErr *domain.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return c.JSON(statusFor(kind, err), &domain.APIResponse{
		Status:    domain.ResponseStatusError,
		Message:   message,
		ErrorCode: strings.ToUpper(string(kind)),
	})
}

func statusFor(kind domain.ErrorKind, err error) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnknownTool, domain.KindUnknownAgent:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPolicyDenied:
		return http.StatusForbidden
	case domain.KindAuthFailure:
		return http.StatusUnauthorized
	case domain.KindToolUnavailable:
		if errors.Is(err, domain.ErrTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
