package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapekiln/kiln/internal/api/handlers"
)

// NewRouter wires the HTTP surface: job preview and ordering for users,
// queue and transition endpoints for the print agent.
func NewRouter(orders *handlers.OrderHandler, preview *handlers.PreviewHandler) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		preview.RegisterRoutes(v1)
		orders.RegisterRoutes(v1)
	}

	return router
}
