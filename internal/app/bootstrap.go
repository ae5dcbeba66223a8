package app

import (
	"context"
	"time"

	"backend/internal/app/audit"
	"backend/internal/app/health"
	"backend/internal/app/message"
	"backend/internal/app/notify"
	"backend/internal/app/presence"
	"backend/internal/app/reminder"
	"backend/internal/app/session"
	"backend/internal/app/thread"
	"backend/internal/app/upload"
	"backend/internal/config"
	"backend/internal/db"
	"backend/internal/eventbus"
	"backend/internal/gateways/websocket"
	"backend/internal/providers/minio"
	"backend/internal/providers/redis"
	"backend/internal/router"
	"backend/internal/utils"
	"backend/internal/workers"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Application struct {
	Router   *router.Router
	DB       *gorm.DB
	Notifier notify.Dispatcher
	Pool     *workers.Pool
}

func Bootstrap(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	dbConn, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(dbConn, logger); err != nil {
		return nil, err
	}

	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger)

	minioProvider, err := minio.NewMinioProvider(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize MinIO provider, attachments disabled", zap.Error(err))
		minioProvider = nil
	}

	eventBus := eventbus.NewRedisBus(redisProvider, cfg.EventBusChannel, logger)
	go eventBus.Run(context.Background())

	pool := workers.NewPool(4, 256, logger)
	pool.Start(context.Background())

	notifier := notify.NewDispatcher(cfg.KafkaBrokers, cfg.NotifyTopic, logger)

	resolver := session.NewRedisResolver(redisProvider)
	presenceTracker := presence.NewTracker(
		presence.NewRedisStore(redisProvider),
		cfg.PresenceTTL,
		cfg.TypingTTL,
		logger,
	)

	auditRepo := audit.NewRepository(dbConn)
	auditService := audit.NewService(auditRepo, logger)

	reminderService := reminder.NewService(dbConn, logger)

	threadRepo := thread.NewRepository(dbConn)
	threadService := thread.NewService(threadRepo, dbConn, eventBus, pool, auditService, logger)

	messageRepo := message.NewRepository(dbConn)
	messageService := message.NewService(
		messageRepo,
		threadService,
		dbConn,
		eventBus,
		pool,
		auditService,
		notifier,
		reminderService,
		minioProvider,
		message.Options{
			MaxAttachmentSize:  cfg.MaxAttachmentSize,
			MaxAttachmentsSent: cfg.MaxAttachmentsSent,
			ReminderDelay:      cfg.ReminderDelay,
		},
		logger,
	)

	hub := websocket.NewHub(logger, resolver, threadService, presenceTracker, eventBus)
	go hub.Run()

	if minioProvider != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				if err := minioProvider.DeleteTmpFilesOlderThan(1 * time.Hour); err != nil {
					logger.Warn("Failed to cleanup old tmp files", zap.Error(err))
				}
			}
		}()
	}

	healthHandler := health.NewHandler(&utils.HealthChecker{
		DB:    dbConn,
		Redis: redisProvider.Client,
	})
	threadHandler := thread.NewHandler(threadService, resolver)
	messageHandler := message.NewHandler(messageService, resolver)
	uploadHandler := upload.NewHandler(minioProvider, resolver, logger)

	r := router.NewRouter(logger)

	r.RegisterHealthRoutes(healthHandler)
	r.RegisterWebSocketRoutes(hub)
	r.RegisterThreadRoutes(threadHandler)
	r.RegisterMessageRoutes(messageHandler)
	r.RegisterUploadRoutes(uploadHandler)

	return &Application{
		Router:   r,
		DB:       dbConn,
		Notifier: notifier,
		Pool:     pool,
	}, nil
}
