package server

import (
	"net/http"

	"github.com/OFFIS-RIT/kgalign/internal/server/middleware"
	"github.com/OFFIS-RIT/kgalign/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Run routes
	apiRoutes.POST("/runs", routes.CreateRunHandler, middleware.RequirePermission(middleware.PermRunCreate))
	apiRoutes.GET("/runs/:id", routes.GetRunHandler, middleware.RequirePermission(middleware.PermRunView))
	apiRoutes.GET("/runs/:id/mapping", routes.GetRunMappingHandler, middleware.RequirePermission(middleware.PermRunView))
	apiRoutes.GET("/runs/:id/download", routes.GetRunDownloadHandler, middleware.RequirePermission(middleware.PermRunView))
	apiRoutes.GET("/runs/:id/blank-nodes", routes.GetRunBlankNodesHandler, middleware.RequirePermission(middleware.PermRunView))
}
