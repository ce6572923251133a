package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumora-app/lumora-api/internal/config"
	"github.com/lumora-app/lumora-api/internal/database"
	"github.com/lumora-app/lumora-api/internal/handler"
	"github.com/lumora-app/lumora-api/internal/middleware"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/repository"
	"github.com/lumora-app/lumora-api/internal/router"
	"github.com/lumora-app/lumora-api/internal/service"
	"github.com/lumora-app/lumora-api/internal/utils"
	"github.com/lumora-app/lumora-api/pkg/ai"
	"github.com/lumora-app/lumora-api/pkg/cloudinary"
	"github.com/lumora-app/lumora-api/pkg/push"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		// Single-node deployments run without NATS; broadcasts stay local
		// except for the redis mirror.
		logger.Warn().Err(err).Msg("nats unavailable, cross-node mirroring degraded")
		natsConn = nil
	}

	validate := validator.New()

	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	var dispatcher push.Dispatcher
	if cfg.FCMServerKey != "" {
		fcm, err := push.NewFCMClient(push.FCMConfig{
			ServerKey: cfg.FCMServerKey,
			Endpoint:  cfg.FCMEndpoint,
			Timeout:   cfg.PushTimeout,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure push dispatcher")
		}
		dispatcher = fcm
	} else {
		logger.Warn().Msg("push dispatcher disabled, no server key configured")
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		cloud, err := cloudinary.New(cloudinary.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure media storage")
		}
		storage = cloud
	} else {
		logger.Warn().Msg("media storage disabled, no cloudinary credentials configured")
	}

	var suggester ai.Suggester
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAISuggester(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure reply suggester")
		}
		suggester = openAI
	}

	chatService := service.NewChatService(chatRepo, messageRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, dispatcher, validate, logger)
	mediaService := service.NewMediaService(storage, cfg.MaxUploadMB, logger)
	suggestionService := service.NewSuggestionService(chatService, suggester, logger)
	gateway := service.NewGateway(chatService, notificationService, redisClient, cfg.EventChannelBase, natsConn, validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				code = fiberErr.Code
			}
			return utils.SendError(c, code, err.Error())
		},
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, router.Dependencies{
		Health:        handler.NewHealthHandler(db, redisClient, cfg.AppName),
		Chats:         handler.NewChatHandler(chatService, mediaService, suggestionService, logger),
		Notifications: handler.NewNotificationHandler(notificationService, logger),
		Gateway:       handler.NewGatewayHandler(gateway, cfg.JWTSecret, ctx, logger),
		JWTSecret:     cfg.JWTSecret,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("support api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("server terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if natsConn != nil {
		natsConn.Close()
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis client")
	}

	logger.Info().Msg("support api stopped")
}
