// Package config loads process configuration from the environment, the
// way the original monolith did with godotenv + typed getters, extended
// with the settings both the matchmaking and game-engine services need.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the union of settings read by both cmd/matchmaking and
// cmd/gameengine. Each binary only consults the fields it needs.
type Config struct {
	Environment string
	Port        string
	FrontendURL string

	// Match Store (Postgres)
	DatabaseURL string

	// Token Store (Redis)
	RedisURL string

	// Service addresses, for inter-service RPC and local dev wiring.
	MatchmakingURL string
	GameEngineURL  string
	CatalogueURL   string
	PlayersURL     string

	// Outbound RPC timeouts.
	GameEngineRequestTimeout time.Duration
	CatalogueRequestTimeout  time.Duration
	PlayersRequestTimeout    time.Duration

	// Matchmaking Coordinator tuning.
	MatchmakingMaxQueueSize int

	// Game Engine tuning.
	DeckSize   int
	MaxRounds  int
	Categories []string

	// Leaderboard / history pagination caps.
	LeaderboardMaxLimit int
	HistoryMaxLimit     int

	// Security
	JWTSecret string
}

// Load reads .env (if present) then the process environment, falling back
// to the defaults spec'd for local development.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/duelcore?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MatchmakingURL: getEnv("MATCHMAKING_URL", "http://localhost:8081"),
		GameEngineURL:  getEnv("GAME_ENGINE_URL", "http://localhost:8082"),
		CatalogueURL:   getEnv("CATALOGUE_URL", "http://localhost:8083"),
		PlayersURL:     getEnv("PLAYERS_URL", "http://localhost:8084"),

		GameEngineRequestTimeout: getEnvDuration("GAME_ENGINE_REQUEST_TIMEOUT", 5*time.Second),
		CatalogueRequestTimeout:  getEnvDuration("CATALOGUE_REQUEST_TIMEOUT", 5*time.Second),
		PlayersRequestTimeout:    getEnvDuration("PLAYERS_REQUEST_TIMEOUT", 5*time.Second),

		MatchmakingMaxQueueSize: getEnvInt("MATCHMAKING_MAX_QUEUE_SIZE", 0),

		DeckSize:   getEnvInt("DECK_SIZE", 5),
		MaxRounds:  getEnvInt("MAX_ROUNDS", 5),
		Categories: getEnvList("CARD_CATEGORIES", []string{"economy", "food", "environment", "special", "total"}),

		LeaderboardMaxLimit: getEnvInt("LEADERBOARD_MAX_LIMIT", 500),
		HistoryMaxLimit:     getEnvInt("HISTORY_MAX_LIMIT", 100),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
