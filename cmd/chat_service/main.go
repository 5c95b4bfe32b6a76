package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bytetalk/internal/chat/app"
	"bytetalk/internal/chat/repository"
	"bytetalk/internal/chat/router"
	"bytetalk/pkg/config"
	"bytetalk/pkg/database"
	"bytetalk/pkg/logger"
	testtool "bytetalk/pkg/test_tool"
	"bytetalk/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	if err != nil {
		logger.Log.Fatal("load config failed", zap.Error(err))
	}
	cfg.Defaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Log.Fatal("auth.jwt_secret is required")
	}
	token.SetSecret(cfg.Auth.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Mongo 連線
	uri := database.MongoURI(cfg.MongoDB.User, cfg.MongoDB.Password, cfg.MongoDB.Host, cfg.MongoDB.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoDB.RetryCount,
			RetryInterval: time.Duration(cfg.MongoDB.RetryInterval) * time.Second,
		},
		cfg.MongoDB.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoDB.Host),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())

	if err := repository.EnsureIndexes(ctx, mongo.Database); err != nil {
		logger.Log.Fatal("ensure indexes failed", zap.Error(err))
	}

	// 2. Repository
	msgRepo := repository.NewMessageRepository(mongo.Database)
	userRepo := repository.NewUserRepository(mongo.Database)
	notifRepo := repository.NewNotificationRepository(mongo.Database)

	// 3. Relay, redis 模式時跨節點轉送
	registry := app.NewRegistry(userRepo)
	var bus app.EventBus
	if cfg.Relay.Mode == config.RelayModeRedis {
		masterName, sentinel := config.GetRedisSetting()
		redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.Addr, cfg.Redis.RedisDB)
		if err != nil {
			logger.Log.Fatal("connect redis failed", zap.Error(err))
		}
		defer redisClient.Close()
		bus = repository.NewRedisPubSub(redisClient)
	}
	relay := app.NewRelay(registry, bus, cfg.Relay.Channel)
	if err := relay.Listen(ctx); err != nil {
		logger.Log.Fatal("relay subscribe failed", zap.Error(err))
	}

	// 4. 通知, 有設定 queue 時經由 rabbitmq 非同步寫入
	notifier := app.NewDirectDispatcher(notifRepo)
	if cfg.Notification.Queue != "" {
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    cfg.Notification.RabbitURL,
			RetryCount:    cfg.Notification.RetryCount,
			RetryInterval: time.Duration(cfg.Notification.RetryInterval) * time.Second,
		})
		if err != nil {
			logger.Log.Fatal("connect rabbitmq failed", zap.Error(err))
		}
		defer conn.Close()

		pubCh, err := database.OpenQueue(conn, cfg.Notification.Queue)
		if err != nil {
			logger.Log.Fatal("open notification queue failed", zap.Error(err))
		}
		defer pubCh.Close()
		notifier = app.NewQueueDispatcher(database.NewRabbitRepository(pubCh), cfg.Notification.Queue)

		consumeCh, err := database.OpenQueue(conn, cfg.Notification.Queue)
		if err != nil {
			logger.Log.Fatal("open notification consumer failed", zap.Error(err))
		}
		defer consumeCh.Close()
		consumer := app.NewNotificationConsumer(consumeCh, cfg.Notification.Queue, notifRepo)
		go func() {
			if err := consumer.StartConsumer(ctx); err != nil {
				logger.Log.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	// 5. UseCase / Handler
	messageUC := app.NewMessageUseCase(msgRepo, userRepo, notifier, relay)
	userUC := app.NewUserUseCase(userRepo, notifRepo)
	messageHandler := app.NewMessageHandler(messageUC, userUC)
	wsHandler := app.NewChatWebsocketHandler(registry, messageUC, cfg.Socket.SendQueueSize, cfg.Socket.PingInterval)

	// 6. Fiber
	// 參數字串會被存進 registry / repository, 不可指向共用 buffer
	r := fiber.New(fiber.Config{Immutable: true})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log", zap.Error(err))
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))
	router.RegisterRoutes(r, cfg.Auth.CookieName, messageHandler, wsHandler)

	testtool.StartPprof("127.0.0.1:6060")

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown failed", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("relay", string(cfg.Relay.Mode)))
	if err := r.Listen(port); err != nil {
		logger.Log.Error("Failed to start Fiber", zap.Error(err))
	}
}
