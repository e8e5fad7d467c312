package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/chat"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/db"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/handlers"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/identity"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/middleware"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/observability"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/presence"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/rabbitmq"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/repositories"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/telemetry"
	"github.com/ruxsoramahmudova15-cpu/telegramm-clone-sub000/internal/ws"
)

const serviceName = "telegramm-clone"

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, serviceName, endpoint)
		if err != nil {
			log.Printf("tracing disabled: %v", err)
		} else {
			defer shutdown(ctx)
		}
	}

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	// Stored online flags may be stale after a crash; the registry starts
	// empty, so clear them before accepting connections.
	if err := userRepo.ResetAllOnline(ctx); err != nil {
		log.Fatalf("failed to reset online flags: %v", err)
	}

	amqpURL := os.Getenv("AMQP_URL")
	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("EVENTS_EXCHANGE", "chat_events")); err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AUDIT_EXCHANGE", "audit"))
	defer auditPublisher.Close()
	if mode := rabbitmq.PublisherMode(auditPublisher); mode == "noop" {
		log.Printf("audit publisher mode=%s reason=%s", mode, rabbitmq.PublisherNoopReason(auditPublisher))
	}
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.chat", serviceName, getEnv("ENVIRONMENT", "development"))

	verifier := identity.NewJWTVerifier(getEnv("JWT_SECRET", "dev-secret"), userRepo)
	registry := presence.NewRegistry(userRepo)
	hub := ws.NewHub()
	notifier := chat.NewNotifier(notificationRepo, registry)
	router := chat.NewRouter(conversationRepo, userRepo, hub, notifier)
	reconciler := chat.NewReconciler(conversationRepo, messageRepo)

	conversationHandler := handlers.NewConversationHandler(conversationRepo, userRepo, audit)
	messageHandler := handlers.NewMessageHandler(conversationRepo, messageRepo, userRepo, router, reconciler, audit)
	userHandler := handlers.NewUserHandler(userRepo, registry)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	wsHandler := ws.NewHandler(hub, registry, router, reconciler, conversationRepo, messageRepo, userRepo, verifier)

	engine := gin.Default()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	engine.POST("/conversations", authMiddleware, conversationHandler.CreateConversation)
	engine.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	engine.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.GetMessages)
	engine.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.PostMessage)
	engine.POST("/conversations/:conversation_id/read", authMiddleware, messageHandler.MarkRead)

	engine.GET("/users/me", authMiddleware, userHandler.Me)
	engine.GET("/users/online", authMiddleware, userHandler.ListOnline)
	engine.GET("/users/:user_id", authMiddleware, userHandler.GetUser)

	engine.GET("/notifications", authMiddleware, notificationHandler.ListNotifications)
	engine.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkNotificationRead)

	engine.GET("/ws", wsHandler.Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(engine, audit, os.Getenv("DEBUG_ROUTES") == "true")

	port := getEnv("PORT", "8083")
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
