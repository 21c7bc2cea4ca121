package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"planboard-backend/internal/config"
	"planboard-backend/internal/database"
	"planboard-backend/internal/handlers"
	"planboard-backend/internal/middleware"
	"planboard-backend/internal/repository"
	"planboard-backend/internal/router"
	"planboard-backend/internal/services"
	"planboard-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Planboard Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	var (
		contentStore services.ContentStore
		userStore    services.UserStore
		sessionStore services.SessionStore
		notifier     services.ChangeNotifier
	)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	if cfg.DatabaseURL != "" {
		dbCtx, cancelDB := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelDB()
		pool, err := database.NewPostgresPool(dbCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(dbCtx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		contentStore = repository.NewContentRepo(pool)
		userStore = repository.NewUserRepo(pool)
	} else {
		contentStore = repository.NewMemoryContentRepo()
		userStore = repository.NewMemoryUserRepo()
		log.Println("✓ DATABASE_URL not set, using in-memory store")
	}

	// ──── Step 3: Initialize Redis Client ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisCtx, cancelRedis := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		redisClient, err = database.NewRedisClient(redisCtx, cfg.RedisURL)
		cancelRedis()
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		log.Println("✓ Redis connected")

		sessionStore = repository.NewSessionRepo(redisClient)
		notifier = services.NewRedisNotifier(redisClient)
	} else {
		sessionStore = repository.NewMemorySessionRepo()
		log.Println("✓ REDIS_URL not set, using in-memory sessions")
	}

	// ──── Step 4: Start WebSocket Hub ────
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	var wsHub *websocket.Hub
	if redisClient != nil {
		wsHub = websocket.NewHub(redisClient)
	} else {
		wsHub = websocket.NewHub(nil)
		notifier = services.NewLocalNotifier(wsHub)
	}
	go wsHub.Run(hubCtx)
	log.Println("✓ WebSocket hub started")

	// ──── Step 5: Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userStore, sessionStore, jwtAuth, cfg.TokenTTL, !cfg.NoRegistration)
	contentService := services.NewContentService(contentStore, userStore, notifier, cfg.DemoMode)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authService.SeedAdmin(seedCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("✗ Admin seed failed: %v", err)
	}
	cancelSeed()
	if cfg.AdminUsername != "" {
		log.Printf("✓ Admin account %q ready", cfg.AdminUsername)
	}

	cookies := middleware.NewCookieStore(cfg.SessionSecret, cfg.IsProduction(), cfg.TokenTTL)
	authenticator := middleware.NewAuthenticator(jwtAuth, cookies, authService)

	// ──── Step 6: Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, authenticator)
	contentHandler := handlers.NewContentHandler(contentService)

	// ──── Step 7: Start HTTP Server ────
	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	r := router.New(authenticator, authHandler, contentHandler, wsHub, authLimiter, cfg.FrontendURLs, cfg.DemoMode)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopHub()
		wsHub.Close()
		authLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if cfg.DemoMode {
		log.Println("  DEMO_MODE is on: anonymous callers can read every item")
	}
	log.Printf("✓ Planboard Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
