package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aarohyatrika/internal/config"
	"aarohyatrika/internal/handlers"
	"aarohyatrika/internal/middleware"
	"aarohyatrika/internal/repositories/mongodb"
	"aarohyatrika/internal/services"
	"aarohyatrika/pkg/cache"
	"aarohyatrika/pkg/database"
	"aarohyatrika/pkg/logger"
	ws "aarohyatrika/pkg/websocket"
	"aarohyatrika/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to mongodb")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to create indexes")
	}
	cancel()

	// Redis is an optimization, not a dependency; run without it if absent.
	var rideCache mongodb.Cache
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Warn("redis unavailable, ride caching disabled")
	} else {
		rideCache = redisCache
		defer redisCache.Close()
	}

	// Repositories
	rideRepo := mongodb.NewRideRepository(db.Database, rideCache)
	userRepo := mongodb.NewUserRepository(db.Database)
	ratingRepo := mongodb.NewRatingRepository(db.Database)

	// Realtime hub doubles as the ride service's broadcaster.
	hub := ws.NewHub(rideRepo, log)
	wsHandler := ws.NewHandler(hub)

	// Services
	rideService := services.NewRideService(rideRepo, userRepo, hub, log)
	authService := services.NewAuthService(userRepo, cfg.Security.JWTSecret, cfg.Security.JWTTokenTTL, cfg.Security.BcryptCost, log)
	userService := services.NewUserService(userRepo, cfg.Security.BcryptCost, log)
	ratingService := services.NewRatingService(ratingRepo, rideRepo, userRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	rideHandler := handlers.NewRideHandler(rideService)
	userHandler := handlers.NewUserHandler(userService, ratingService)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())

	api := router.Group("/api")
	{
		routes.SetupAuthRoutes(api, authHandler)
		routes.SetupRideRoutes(api, rideHandler, cfg.Security.JWTSecret)
		routes.SetupUserRoutes(api, userHandler, cfg.Security.JWTSecret)
	}

	router.GET("/ws", middleware.AuthRequired(cfg.Security.JWTSecret), wsHandler.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "name": cfg.App.Name})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.App.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
