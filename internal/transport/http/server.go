// Package http provides the HTTP server implementation for agentkit.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xiaot623/agentkit/internal/config"
	"github.com/xiaot623/agentkit/internal/service"
	v1 "github.com/xiaot623/agentkit/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server.
// It serves agent registration, message dispatch, tool listing and, when a
// state API key is configured, state ingestion.
func NewServer(svc *service.Service, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, cfg.StateAPIKey)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}
