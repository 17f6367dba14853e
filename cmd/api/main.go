package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/arenachess/backend/internal/config"
	"github.com/arenachess/backend/internal/dependencies/clock"
	"github.com/arenachess/backend/internal/dependencies/random"
	"github.com/arenachess/backend/internal/jobs"
	"github.com/arenachess/backend/internal/repository/postgres"
	redisrepo "github.com/arenachess/backend/internal/repository/redis"
	"github.com/arenachess/backend/internal/scheduler"
	"github.com/arenachess/backend/internal/service/archive"
	"github.com/arenachess/backend/internal/service/game"
	"github.com/arenachess/backend/internal/service/matchmaking"
	"github.com/arenachess/backend/internal/service/rematch"
	"github.com/arenachess/backend/internal/transport/handlers"
	ws "github.com/arenachess/backend/internal/transport/websocket"
	"github.com/arenachess/backend/pkg/auth"
)

func main() {
	log.Println("Starting arenachess backend server...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	db, err := postgres.Connect(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeMin) * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gameRepo := postgres.NewGameRepo(db)

	var cache archive.RecentCache
	redisClient, err := redisrepo.NewClient(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Printf("[REDIS] Warning: Could not connect to Redis: %v. Falling back to PostgreSQL only.", err)
	} else {
		defer redisClient.Close()
		cache = redisrepo.NewRecentResults(redisClient, cfg.RecentGamesLimit)
	}

	archiveService := archive.NewService(gameRepo, cache)
	authManager := auth.NewManager(cfg.JWTSecret)
	registry := ws.NewRegistry()

	gameManager := game.NewManager(
		registry,
		archiveService,
		scheduler.New(),
		clock.New(),
		random.New(),
		game.Config{
			MoveTimeout: cfg.MoveTimeout,
			GracePeriod: cfg.GracePeriod,
		},
	)

	queue := matchmaking.NewQueue(gameManager, clock.New(), cfg.MatchToleranceSeconds)
	gameManager.SetDequeuer(queue)
	go matchmaking.Listen(queue, gameManager)

	negotiator := rematch.NewNegotiator(registry, gameManager, registry, scheduler.New(), clock.New(), cfg.RematchWindow, cfg.GracePeriod)
	gameManager.SetEndedHook(negotiator.SessionEnded)

	stopCleanup := jobs.StartCleanupWorker(gameManager, negotiator, time.Hour, 24*time.Hour)
	defer stopCleanup()

	wsHandler := ws.NewHandler(authManager, registry, queue, gameManager, negotiator, cfg.AllowedOrigins)

	router := mux.NewRouter()
	router.Handle("/ws", wsHandler)
	router.HandleFunc("/health", handlers.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/games/recent", handlers.MakeHandleRecentGames(archiveService, cfg.RecentGamesLimit)).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	log.Printf("Server is listening on port %s\n", cfg.Port)

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Server is shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let in-flight game archives land before the database handle closes.
	archiveService.Flush()

	log.Println("Server exited gracefully")
}
