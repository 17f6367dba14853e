package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                 string
	JWTSecret            string
	AllowedOrigins       []string
	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	RedisURL             string
	RedisPassword        string

	// Gameplay timers
	MoveTimeout   time.Duration // forfeit clock for the player to move
	GracePeriod   time.Duration // reconnect window after a disconnect
	RematchWindow time.Duration // how long a rematch invitation stays open

	// Matchmaking
	MatchToleranceSeconds int // max initial-time gap between paired players

	RecentGamesLimit int
}

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")
	jwtSecret := GetEnv("JWT_SECRET", "change-this-in-production")

	allowedOrigins := []string{"http://localhost:5173"}
	if extra := GetEnv("ALLOWED_ORIGINS", ""); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	return &Config{
		Port:                 port,
		JWTSecret:            jwtSecret,
		AllowedOrigins:       allowedOrigins,
		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		RedisURL:             GetEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:        GetEnv("REDIS_PASSWORD", ""),

		MoveTimeout:   time.Duration(GetEnvAsInt("MOVE_TIMEOUT_SECONDS", 120)) * time.Second,
		GracePeriod:   time.Duration(GetEnvAsInt("GRACE_PERIOD_SECONDS", 30)) * time.Second,
		RematchWindow: time.Duration(GetEnvAsInt("REMATCH_WINDOW_SECONDS", 20)) * time.Second,

		MatchToleranceSeconds: GetEnvAsInt("MATCH_TOLERANCE_SECONDS", 0),

		RecentGamesLimit: GetEnvAsInt("RECENT_GAMES_LIMIT", 50),
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
