package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/agentkit/internal/domain"
)

// ListTools lists registered tools.
// GET /v1/tools
func (h *Handler) ListTools(c echo.Context) error {
	defs := h.service.Tools().List()

	items := make([]domain.ToolListItem, 0, len(defs))
	for _, d := range defs {
		item := domain.ToolListItem{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
			Type:        "local",
		}
		if d.IsRemote() {
			item.Type = "external"
			item.Endpoint = d.RemoteAddress
		}
		items = append(items, item)
	}

	return c.JSON(http.StatusOK, domain.ListToolsResponse{Tools: items})
}

// ListDeliveries lists recent background deliveries.
// GET /v1/deliveries?kind=forward|webhook&limit=N
func (h *Handler) ListDeliveries(c echo.Context) error {
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil {
			return errorResponse(c, domain.ValidationError("limit must be an integer"))
		}
		limit = val
	}

	ctx := c.Request().Context()

	deliveries, err := h.service.ListDeliveries(ctx, domain.DeliveryKind(c.QueryParam("kind")), limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
	})
}
