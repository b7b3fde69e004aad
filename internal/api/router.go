package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/metrics"
)

// SetupRouter builds the gin engine with middleware, the health endpoint and
// the planning API.
func SetupRouter(cfg *config.Config, server *Server) *gin.Engine {
	r := gin.Default()

	r.Use(CORS())
	r.Use(RateLimit(cfg.RateLimitRPS))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"sys":    metrics.GetSysHealth(cfg.OutputsDir),
		})
	})

	r.Static("/outputs", cfg.OutputsDir)

	v1 := r.Group("/api/v1")
	v1.Use(Auth(cfg.APIJWTSecret))
	{
		v1.POST("/plan", server.CreatePlan)
		v1.GET("/plan/:id/status", server.PlanStatus)
		v1.GET("/plan/:id/result", server.PlanResult)
		v1.DELETE("/plan/:id", server.CancelPlan)
	}

	return r
}
