// Package gameengineapi is the HTTP surface of cmd/gameengine: the
// internal create-match RPC the Matchmaking Coordinator calls, plus the
// player-facing deck/move/match/history/leaderboard endpoints.
package gameengineapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/api/handlers"
	"github.com/playmatatu/duelcore/internal/config"
	"github.com/playmatatu/duelcore/internal/gameengine"
	"github.com/playmatatu/duelcore/internal/middleware"
)

// RegisterRoutes mounts the game engine's HTTP surface onto router.
func RegisterRoutes(router *gin.Engine, cfg *config.Config, svc *gameengine.Service, logger *zap.Logger) {
	router.Use(middleware.CORSMiddleware(cfg, logger))
	router.GET("/health", handlers.HealthCheck("gameengine"))

	// Internal RPC: called only by the Matchmaking Coordinator, never
	// exposed through the public gateway/frontend.
	router.POST("/internal/matches/create", createMatchHandler(svc))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	{
		v1.POST("/matches/:id/deck", submitDeckHandler(svc))
		v1.POST("/matches/:id/moves/:round", submitMoveHandler(svc))
		v1.GET("/matches/:id", getMatchHandler(svc))
		v1.GET("/matches/:id/round", getRoundStatusHandler(svc))
		v1.GET("/matches/history/:id", getHistoryHandler(svc, cfg))
		v1.GET("/leaderboard", getLeaderboardHandler(svc, cfg))
	}
}
