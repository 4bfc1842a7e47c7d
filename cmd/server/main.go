// Package main runs the realtime session coordination server with WebSocket
// channels and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brightlearn/backend/config"
	"github.com/brightlearn/backend/internal/assistant"
	"github.com/brightlearn/backend/internal/attendance"
	"github.com/brightlearn/backend/internal/auth"
	"github.com/brightlearn/backend/internal/chat"
	"github.com/brightlearn/backend/internal/middleware"
	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/internal/notifications"
	"github.com/brightlearn/backend/internal/realtime"
	"github.com/brightlearn/backend/internal/sessions"
	"github.com/brightlearn/backend/internal/worker"
	"github.com/brightlearn/backend/pkg/database"
	"github.com/brightlearn/backend/pkg/metrics"
	"github.com/brightlearn/backend/pkg/queue"
	"github.com/brightlearn/backend/pkg/redis"
	"github.com/brightlearn/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	userDirectory := auth.NewRepository(pool)

	// Connection plumbing shared by all three channels.
	registry := realtime.NewRegistry(logger)
	rooms := realtime.NewRooms()
	registry.OnUnregister(rooms.DropConn)
	fanout := realtime.NewFanout(registry, rooms, logger)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	notifier := notifications.NewNotifier(notificationRepo, fanout, logger)
	notificationGateway := notifications.NewGateway(notificationRepo, fanout, logger)
	notificationHandler := notifications.NewHandler(notifier, notificationRepo)

	// Live sessions
	jobQueue := queue.NewQueue(rdb.Client, logger)
	attendanceRepo := attendance.NewRepository(pool)
	sessionRepo := sessions.NewRepository(pool)
	sessionService := sessions.NewService(sessionRepo, attendanceRepo, jobQueue, notifier,
		cfg.Session.JoinWindowMinutes, cfg.Session.MinDurationMinutes, logger)
	sessionHandler := sessions.NewHandler(sessionService)

	// Chat
	chatRepo := chat.NewRepository(pool)
	chatService := chat.NewService(chatRepo, logger)
	chatGateway := chat.NewGateway(chatService, rooms, fanout, userDirectory, logger)

	// Assistant
	assistantProvider := assistant.NewHTTPProvider(cfg.Assistant.BaseURL, cfg.Assistant.APIKey,
		time.Duration(cfg.Assistant.TimeoutSec)*time.Second)
	assistantGateway := assistant.NewGateway(assistantProvider, rooms, fanout, userDirectory,
		time.Duration(cfg.Assistant.TimeoutSec)*time.Second, logger)

	// Out-of-band attendance reconciliation shares the process in dev; the
	// dedicated worker binary runs it in production.
	reconciler := worker.NewAttendanceReconciler(attendanceRepo, jobQueue, logger)

	verify := func(token string) (uuid.UUID, models.Role, error) {
		claims, err := jwtService.Verify(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Live sessions
		api.POST("/sessions", middleware.RequireRole("admin", "instructor"), sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.POST("/sessions/:id/join", sessionHandler.Join)
		api.POST("/sessions/:id/leave", sessionHandler.Leave)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		api.GET("/sessions/:id/stats", sessionHandler.Stats)
		api.GET("/sessions/:id/attendance", middleware.RequireRole("admin", "instructor"), sessionHandler.Attendance)

		// Notifications
		api.POST("/notifications", middleware.RequireRole("admin"), notificationHandler.Push)
		api.GET("/notifications", notificationHandler.List)
	}

	// WebSocket channels (token in query; browsers cannot set headers here)
	router.GET("/ws/chat", realtime.ServeWS(registry, logger, verify, chatGateway))
	router.GET("/ws/notifications", realtime.ServeWS(registry, logger, verify, notificationGateway))
	router.GET("/ws/assistant", realtime.ServeWS(registry, logger, verify, assistantGateway))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go reconciler.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
