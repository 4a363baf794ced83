package v1

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/agentkit/internal/domain"
)

// RegisterAgent registers a new agent.
// POST /v1/agents/register
func (h *Handler) RegisterAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.AgentRegistrationPayload
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, domain.ValidationError("invalid request body"))
	}

	agent, err := h.service.RegisterAgent(ctx, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, &domain.APIResponse{
		Status:  domain.ResponseStatusSuccess,
		Message: fmt.Sprintf("Agent '%s' registered successfully.", agent.Name),
		Data:    map[string]string{"agentId": agent.ID},
	})
}

// ListAgents lists registered agents, optionally filtered by capability.
// GET /v1/agents?capability=
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.service.ListAgents(ctx, strings.TrimSpace(c.QueryParam("capability")))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": agents,
	})
}

// GetAgent gets a specific agent by ID.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent, err := h.service.GetAgent(ctx, agentID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, agent)
}

// DeregisterAgent removes an agent.
// DELETE /v1/agents/:agent_id
func (h *Handler) DeregisterAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent, err := h.service.DeregisterAgent(ctx, agentID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, &domain.APIResponse{
		Status:  domain.ResponseStatusSuccess,
		Message: fmt.Sprintf("Agent '%s' deregistered.", agent.Name),
		Data:    map[string]string{"agentId": agent.ID},
	})
}
