package main

import (
	"fmt"
	"log"
	"net/http"

	"chat-server/internal/auth"
	"chat-server/internal/chat"
	"chat-server/internal/config"
	"chat-server/internal/database"
	"chat-server/internal/http/handlers"
	"chat-server/internal/http/middleware"
	"chat-server/internal/logging"
	"chat-server/internal/presence"
	"chat-server/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.DBDSN == "" || cfg.JWTSecret == "" {
		log.Fatal("DB_DSN and JWT_SECRET must be set")
	}

	logger, err := logging.New(cfg.LogPath)
	if err != nil {
		log.Fatal("failed to init logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.ConnectMySQL(cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to connect db", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	tracker := presence.NewTracker(db, logger)
	conversations := chat.NewConversationService(db, logger)
	rooms := chat.NewRoomService(db, logger)
	messages := chat.NewMessageService(db, conversations, rooms, logger)
	typing := chat.NewTypingRegistry()

	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, tokens, tracker, conversations, rooms, messages,
		typing, logger, cfg.WSInsecureSkipVerify)

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := &handlers.AuthHandler{DB: db, Tokens: tokens, Log: logger}
	r.POST("/api/v1/auth/register", authH.Register)
	r.POST("/api/v1/auth/login", authH.Login)

	wsH := &handlers.WSHandler{Gateway: gateway}
	r.GET("/ws", wsH.Handle)

	userH := &handlers.UserHandler{DB: db, Presence: tracker}
	authed := r.Group("/api/v1")
	authed.Use(middleware.AuthMiddleware(tokens))
	authed.GET("/me", userH.Me)
	authed.GET("/users", userH.Lookup)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
