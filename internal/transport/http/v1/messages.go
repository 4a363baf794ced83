package v1

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/agentkit/internal/domain"
)

const maxMessageBytes = 1 << 20

// RunAgent dispatches a message addressed to an agent. Tool invocations answer
// 200 with the result; other messages answer 202 once accepted for delivery.
// POST /v1/agents/:agent_id/run
func (h *Handler) RunAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxMessageBytes+1))
	if err != nil {
		return errorResponse(c, domain.ValidationError("failed to read request body"))
	}
	if len(raw) > maxMessageBytes {
		return errorResponse(c, domain.ValidationError("message body exceeds %d bytes", maxMessageBytes))
	}

	msg, err := domain.DecodeMessage(agentID, raw)
	if err != nil {
		return errorResponse(c, err)
	}

	result, err := h.service.Dispatch(ctx, msg)
	if err != nil {
		return errorResponse(c, err)
	}

	code := http.StatusOK
	if result.Status == domain.DispatchAccepted {
		code = http.StatusAccepted
	}
	return c.JSON(code, result.Body)
}
