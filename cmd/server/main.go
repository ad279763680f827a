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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notifyhub/backend/internal/api"
	"github.com/notifyhub/backend/internal/archive"
	"github.com/notifyhub/backend/internal/auth"
	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/config"
	"github.com/notifyhub/backend/internal/logger"
	"github.com/notifyhub/backend/internal/middleware"
	"github.com/notifyhub/backend/internal/notifier"
	"github.com/notifyhub/backend/internal/presence"
	"github.com/notifyhub/backend/internal/repository"
	"github.com/notifyhub/backend/internal/rooms"
	"github.com/notifyhub/backend/internal/signals"
	"github.com/notifyhub/backend/internal/stream"
)

func main() {
	cfg := config.Load()

	if cfg.JWT.AccessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET environment variable is required")
	}

	slogger := logger.New(logger.DefaultConfig())

	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	eventRepo := repository.NewEventRepo(db)
	appServiceRepo := repository.NewAppServiceRepo(db)
	membershipRepo := repository.NewMembershipRepo(db)

	// Core services
	sysClock := clock.NewSystemClock()
	bus := signals.NewBus()
	tracker := presence.NewTracker(bus, sysClock, cfg.Stream.GracePeriod, slogger)
	roomService := rooms.NewService(membershipRepo)
	eventNotifier := notifier.New(sysClock, cfg.Stream.NotifierBufferSize, slogger)
	streamHandler := stream.NewHandler(eventRepo, appServiceRepo, roomService, eventNotifier, tracker, sysClock, slogger)
	retriever := stream.NewRetriever(eventRepo, roomService)

	// Observe the stream lifecycle so operators can follow user activity.
	bus.Subscribe(signals.StreamStarted, func(ctx context.Context, userID string) error {
		slogger.Info("user event stream started", "user_id", userID)
		return nil
	})
	bus.Subscribe(signals.StreamStopped, func(ctx context.Context, userID string) error {
		slogger.Info("user event stream stopped", "user_id", userID)
		return nil
	})

	// Auth
	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSecret:      cfg.JWT.AccessSecret,
		AccessTokenExpiry: cfg.JWT.AccessTokenExpiry,
		Issuer:            cfg.JWT.Issuer,
	})
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// HTTP handlers
	streamAPI := api.NewStreamHandler(streamHandler, retriever, cfg.Stream.DefaultLimit, cfg.Stream.MaxTimeout, slogger)
	ingestAPI := api.NewIngestHandler(eventRepo, eventNotifier, slogger)
	adminAPI := api.NewAdminHandler(appServiceRepo, membershipRepo, slogger)

	// Retention archiver
	if cfg.Archive.Enabled {
		worker, err := archive.NewWorker(&cfg.Archive, eventRepo, slogger)
		if err != nil {
			log.Fatalf("Failed to create archive worker: %v", err)
		}
		stopArchiver := worker.Start()
		defer stopArchiver()
	}

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewLoggingMiddleware(slogger).Handler)
	r.Use(middleware.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "up"
		if err := db.PingContext(ctx); err != nil {
			dbStatus = "down"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","database":"%s"}`, dbStatus)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		api.RegisterStreamRoutes(r, streamAPI, authMiddleware.Authenticate)
		api.RegisterIngestRoutes(r, ingestAPI, authMiddleware.Authenticate)
		api.RegisterAdminRoutes(r, adminAPI, authMiddleware.Authenticate)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// Long-poll requests can legitimately sit open for minutes; only
		// bound the read side.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Stream.MaxTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// setupDatabase opens and verifies the database connection
func setupDatabase(cfg *config.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sqlx.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Connected to database %s on %s:%s", cfg.Database.DBName, cfg.Database.Host, cfg.Database.Port)
	return db, nil
}
