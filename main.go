package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthtracker-doctors/internal/api"
	"healthtracker-doctors/internal/complaints"
	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/conversation"
	"healthtracker-doctors/internal/database"
	"healthtracker-doctors/internal/doctors"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/patients"
	"healthtracker-doctors/internal/repository"
	"healthtracker-doctors/internal/session"
	"healthtracker-doctors/internal/supabase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()

	if _, err := logger.Init(cfg.LogLevel, cfg.GinMode != "release"); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{}
	var store messaging.Store
	if cfg.DemoMode {
		logger.Log.Info("running in demo mode, serving seeded in-memory data")
		store = repository.NewSeededMemory(time.Now())
	} else {
		db, err := database.NewConnection(ctx, cfg)
		if err != nil {
			logger.Log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.AutoMigrate {
			if err := database.RunMigrations(ctx, db); err != nil {
				logger.Log.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		repo := repository.NewPostgres(db)
		auth := supabase.NewClient(cfg)
		store = repo
		deps.Auth = auth
		deps.Ping = db.Ping
		deps.Doctors = doctors.NewService(repo, auth)
		deps.Patients = patients.NewService(repo, cfg.DisplayLocation())
		deps.Complaints = complaints.NewService(repo, cfg.Messaging.ComplaintLimit)
	}
	if cfg.Supabase.JWTSecret == "" && !cfg.DemoMode {
		logger.Log.Warn("SUPABASE_JWT_SECRET is not set, every protected request will be rejected")
	}

	deps.Gateway = messaging.NewGateway(store, cfg.Messaging.PageSize)
	deps.Sessions = session.NewRegistry(deps.Gateway, nil, session.Options{
		Conversation: conversation.Options{
			LoadLimit: cfg.Messaging.LoadLimit,
			Location:  cfg.DisplayLocation(),
		},
		RecheckDelay: cfg.Messaging.RecheckDelay,
	})

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, deps, cfg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("server starting", zap.String("port", port), zap.Bool("demo", cfg.DemoMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown", zap.Error(err))
	}
}
