// Package matchmakingapi is the HTTP surface of cmd/matchmaking: the
// three Token Store endpoints clients poll while waiting for an
// opponent, wired the way the teacher's internal/api.SetupRoutes wires
// its own route groups.
package matchmakingapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/api/handlers"
	"github.com/playmatatu/duelcore/internal/config"
	"github.com/playmatatu/duelcore/internal/matchmaking"
	"github.com/playmatatu/duelcore/internal/middleware"
)

// RegisterRoutes mounts the matchmaking coordinator's HTTP surface onto
// router.
func RegisterRoutes(router *gin.Engine, cfg *config.Config, coordinator *matchmaking.Coordinator, logger *zap.Logger) {
	router.Use(middleware.CORSMiddleware(cfg, logger))
	router.GET("/health", handlers.HealthCheck("matchmaking"))

	v1 := router.Group("/api/v1/matchmaking")
	v1.Use(middleware.AuthMiddleware(cfg))
	{
		v1.POST("/enqueue", enqueueHandler(coordinator))
		v1.GET("/status/:token", statusHandler(coordinator))
		v1.POST("/dequeue", dequeueHandler(coordinator))
	}
}
