// Command gameengine runs the Game Engine service: the Match Store and
// the Round Resolver behind it, exposed over HTTP both to players and,
// via its internal create-match RPC, to the Matchmaking Coordinator.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/api/gameengineapi"
	"github.com/playmatatu/duelcore/internal/clients"
	"github.com/playmatatu/duelcore/internal/config"
	"github.com/playmatatu/duelcore/internal/database"
	"github.com/playmatatu/duelcore/internal/gameengine"
	"github.com/playmatatu/duelcore/internal/logging"
	"github.com/playmatatu/duelcore/internal/matchrepo"
	"github.com/playmatatu/duelcore/internal/migrations"
	"github.com/playmatatu/duelcore/internal/models"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		logger.Info("running database migrations")
		if err := migrations.Run(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	matchRepo := matchrepo.NewMatchRepository(db)
	roundRepo := matchrepo.NewRoundRepository(db)
	catalogue := clients.NewCatalogueClient(cfg.CatalogueURL, cfg.CatalogueRequestTimeout)
	players := clients.NewPlayersClient(cfg.PlayersURL, cfg.PlayersRequestTimeout)
	categories := categoriesFromConfig(cfg.Categories)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	svc := gameengine.NewService(db, matchRepo, roundRepo, catalogue, players, categories, cfg.DeckSize, cfg.MaxRounds, rng, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	gameengineapi.RegisterRoutes(router, cfg, svc, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting game engine service", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("game engine service failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down game engine service")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("game engine service forced to shutdown", zap.Error(err))
	}
}

func categoriesFromConfig(names []string) []models.Category {
	categories := make([]models.Category, len(names))
	for i, n := range names {
		categories[i] = models.Category(n)
	}
	return categories
}
