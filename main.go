package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"clinic-chat-service/internal/cache"
	"clinic-chat-service/internal/config"
	"clinic-chat-service/internal/db"
	"clinic-chat-service/internal/handlers"
	"clinic-chat-service/internal/middleware"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/rabbitmq"
	"clinic-chat-service/internal/repositories"
	"clinic-chat-service/internal/telemetry"
	"clinic-chat-service/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.SetupTracing(context.Background(), "clinic-chat-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	if mode := rabbitmq.PublisherMode(publisher); mode == "noop" {
		log.Printf("audit publisher mode=%s reason=%q", mode, rabbitmq.PublisherNoopReason(publisher))
	} else {
		log.Printf("audit publisher mode=%s", mode)
	}

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("event bus disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "clinic-chat-service", cfg.Environment)

	unreadCache := cache.NewUnreadCache(cfg.RedisAddr, cfg.RedisPassword, cfg.UnreadCacheTTL)
	defer unreadCache.Close()

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	watermarkRepo := repositories.NewWatermarkRepo(database)

	hub := ws.NewHub()

	roomHandler := handlers.NewRoomHandler(roomRepo, messageRepo, watermarkRepo, unreadCache)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, unreadCache, hub, audit)

	roomWS := ws.NewRoomWebSocketHandler(hub, roomRepo, cfg.JWTSecret)
	lobbyWS := ws.NewLobbyWebSocketHandler(hub, cfg.JWTSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("clinic-chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/rooms/search", authMiddleware, roomHandler.SearchRooms)
	router.POST("/rooms/start", authMiddleware, roomHandler.StartRoom)
	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.GetMessagePage)
	router.POST("/rooms/:room_id/messages", authMiddleware, messageHandler.PostMessage)
	router.POST("/rooms/:room_id/read", authMiddleware, roomHandler.MarkRoomRead)
	router.GET("/rooms/:room_id/unread", authMiddleware, roomHandler.GetUnread)

	router.GET("/ws/rooms/:room_id", roomWS.Handle)
	router.GET("/ws/lobby", lobbyWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
