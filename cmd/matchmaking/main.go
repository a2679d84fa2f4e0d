// Command matchmaking runs the Matchmaking Coordinator service: the
// Token Store HTTP surface players poll while waiting for an opponent.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/api/matchmakingapi"
	"github.com/playmatatu/duelcore/internal/clients"
	"github.com/playmatatu/duelcore/internal/config"
	"github.com/playmatatu/duelcore/internal/logging"
	"github.com/playmatatu/duelcore/internal/matchmaking"
	"github.com/playmatatu/duelcore/internal/redisconn"
	"github.com/playmatatu/duelcore/internal/tokenstore"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	redisClient, err := redisconn.Connect(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	store := tokenstore.NewRedisStore(redisClient)
	gameEngine := clients.NewGameEngineClient(cfg.GameEngineURL, cfg.GameEngineRequestTimeout)
	players := clients.NewPlayersClient(cfg.PlayersURL, cfg.PlayersRequestTimeout)
	coordinator := matchmaking.NewCoordinator(store, gameEngine, players, cfg.MatchmakingMaxQueueSize, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	matchmakingapi.RegisterRoutes(router, cfg, coordinator, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting matchmaking service", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("matchmaking service failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down matchmaking service")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("matchmaking service forced to shutdown", zap.Error(err))
	}
}
