// Package main runs the planning poker HTTP and WebSocket server with graceful shutdown.
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
	"go.uber.org/zap/zapcore"

	"github.com/kiko-poker/backend/config"
	"github.com/kiko-poker/backend/internal/health"
	"github.com/kiko-poker/backend/internal/middleware"
	"github.com/kiko-poker/backend/internal/realtime"
	"github.com/kiko-poker/backend/internal/sessions"
	"github.com/kiko-poker/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		newLogger(config.LogConfig{}).Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.Log)
	defer logger.Sync()

	scale, err := cfg.VoteScale()
	if err != nil {
		logger.Fatal("vote scale", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Redis mirror of session events
	var mirror *realtime.RedisMirror
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		mirror = realtime.NewRedisMirror(rdb.Client, cfg.Redis.ChannelPrefix, 0, logger.Named("mirror"))
		go mirror.Run(ctx)
	} else {
		logger.Info("redis mirror disabled")
	}

	var hubMirror realtime.Mirror
	if mirror != nil {
		hubMirror = mirror
	}
	hub := realtime.NewHub(cfg.WebSocket.SendBuffer, hubMirror, logger.Named("hub"))

	store := sessions.NewStore(sessions.Options{
		MaxDuration:  cfg.Session.MaxDuration,
		ExpiredGrace: cfg.Session.ExpiredGrace,
		Scale:        scale,
	}, hub, logger.Named("store"))

	sweeper := sessions.NewSweeper(store, cfg.Session.SweepInterval, logger.Named("sweeper"))
	go sweeper.Run(ctx)

	sessionHandler := sessions.NewHandler(store, logger)
	healthHandler := health.NewHandler(store, hub, time.Now())

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health"))

	// Health
	router.GET("/health", healthHandler.Check)

	api := router.Group("/api/v1")
	{
		api.GET("/scale", sessionHandler.Scale)
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.DELETE("/sessions/:id", sessionHandler.Close)

		// WebSocket (session bound by path; participant joins with a join frame)
		api.GET("/sessions/:id/ws", realtime.ServeWs(store, hub, realtime.GatewayConfig{
			PingInterval:   cfg.WebSocket.PingInterval,
			PongWait:       cfg.WebSocket.PongWait,
			WriteWait:      cfg.WebSocket.WriteWait,
			SendBuffer:     cfg.WebSocket.SendBuffer,
			MaxMessageSize: cfg.WebSocket.MaxMessageBytes,
			CheckOrigin:    middleware.OriginChecker(cfg.Server.CORSAllowedOrigins),
		}, logger.Named("gateway")))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.Stringer("scale", scale),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped", zap.Int("sessions", store.Count()))
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	config := zap.NewProductionConfig()
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		config.Level = zap.NewAtomicLevelAt(level)
	}
	logger, _ := config.Build()
	return logger
}
