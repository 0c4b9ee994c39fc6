package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "evento/docs" // This is for Swagger
	"evento/internal/app"
	"evento/internal/cache"
	"evento/internal/config"
	"evento/internal/database"
	"evento/internal/logger"
	"evento/internal/middleware"
	"evento/internal/scheduler"
	"evento/internal/vault"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:generate swag init -g cmd/api/main.go -d ../../ -o ../../docs

// @title Evento API
// @version 1.0
// @description Backend API for the multi-tenant event platform: events, registrations, reviewer distribution and certificates
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email suporte@evento.app

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", logger.GetLevel(cfg.Log.Level),
	)

	ctx := context.Background()

	// Initialize database
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	applied, err := database.NewMigrationExecutor(db.DB).Up(ctx, "./migrations")
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed", "applied", applied)

	opts := app.Options{}

	// Vault encrypts per-tenant payment credentials
	if cfg.Vault.Enabled {
		vaultClient, err := vault.NewClient(ctx, cfg.Vault)
		if err != nil {
			slog.Error("Failed to initialize Vault client", "error", err)
			os.Exit(1)
		}
		opts.Cipher = vaultClient
		slog.Info("Vault enabled", "vault_addr", cfg.Vault.Address)
	} else {
		slog.Warn("Vault is disabled - payments use the platform credential only")
	}

	// Redis suppresses duplicate payment notifications
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewClient(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		opts.Deduper = redisClient
		slog.Info("Redis enabled for webhook dedupe")
	}

	a := app.New(db.DB, cfg, opts)

	if err := os.MkdirAll(cfg.App.StaticDir, 0o755); err != nil {
		slog.Error("Failed to create static directory", "dir", cfg.App.StaticDir, "error", err)
		os.Exit(1)
	}

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(a.Repos.Assignments, a.Repos.Events, a.Mailer, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	// Setup router
	mux := http.NewServeMux()
	a.Router(cfg.App.StaticDir).Register(mux, a.AuthMiddleware())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Apply global middleware. RequestMeta sits outside the logger so the
	// logger sees the request the mux annotates with its route pattern.
	var handler http.Handler = mux
	handler = rateLimiter.Limit(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestMeta(handler)
	handler = corsMw.Handler(handler)
	handler = middleware.SecurityHeaders(handler)

	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped")
}
