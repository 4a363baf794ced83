package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xiaot623/agentkit/internal/domain"
)

// bearerAuth guards the state routes. A missing bearer credential is 401, a
// wrong one is 403.
func (h *Handler) bearerAuth() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(h.stateAPIKey)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			auth := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, &domain.APIResponse{
					Status:    domain.ResponseStatusError,
					Message:   "missing bearer credential",
					ErrorCode: strings.ToUpper(string(domain.KindAuthFailure)),
				})
			}
			return c.JSON(http.StatusForbidden, &domain.APIResponse{
				Status:    domain.ResponseStatusError,
				Message:   "invalid credential",
				ErrorCode: strings.ToUpper(string(domain.KindAuthFailure)),
			})
		},
	})
}

// ReportState ingests a state report pushed by a remote agent.
// POST /v1/agents/:agent_id/state
func (h *Handler) ReportState(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	var report domain.StateReport
	if err := c.Bind(&report); err != nil {
		return errorResponse(c, domain.ValidationError("invalid request body"))
	}

	stored, err := h.service.IngestState(ctx, agentID, report)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, &domain.APIResponse{
		Status:  domain.ResponseStatusSuccess,
		Message: "State report accepted.",
		Data: map[string]string{
			"agentId": stored.AgentID,
			"state":   string(stored.State),
		},
	})
}

// GetState returns the latest state reported by an agent.
// GET /v1/agents/:agent_id/state
func (h *Handler) GetState(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	report, err := h.service.LatestState(ctx, agentID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, report)
}
