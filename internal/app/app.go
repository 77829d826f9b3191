package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brokerdesk/offer-service/internal/adapter/export"
	memoryadapter "github.com/brokerdesk/offer-service/internal/adapter/memory"
	mongoadapter "github.com/brokerdesk/offer-service/internal/adapter/mongodb"
	natsadapter "github.com/brokerdesk/offer-service/internal/adapter/nats"
	redisadapter "github.com/brokerdesk/offer-service/internal/adapter/redis"
	"github.com/brokerdesk/offer-service/internal/adapter/telegram"
	"github.com/brokerdesk/offer-service/internal/app/config"
	"github.com/brokerdesk/offer-service/internal/auth"
	"github.com/brokerdesk/offer-service/internal/dialogue"
	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/platform/logger"
	"github.com/brokerdesk/offer-service/internal/repository"
	"github.com/brokerdesk/offer-service/internal/service"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	cfg         *config.Config
	log         logger.Logger
	bot         *telegram.Bot
	mongoClient *mongo.Client
	redisClient *redis.Client
	natsPub     *natsadapter.Publisher
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logCfg := logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	appLogger, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s, Storage=%s", cfg.Env, cfg.Storage.Backend)

	schema := entity.DefaultSchema()

	var (
		offerRepo   repository.OfferRepository
		mongoClient *mongo.Client
	)
	switch cfg.Storage.Backend {
	case "memory":
		offerRepo = memoryadapter.NewOfferRepository()
		appLogger.Info("In-memory OfferRepository initialized")
	default:
		appLogger.Info("Initializing MongoDB client...")
		mongoClient, err = mongoadapter.NewClient(ctx, cfg.MongoDB)
		if err != nil {
			appLogger.Errorf("Failed to initialize MongoDB client: %v", err)
			return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
		}
		appLogger.Info("MongoDB client initialized successfully")
		offerRepo = mongoadapter.NewOfferRepository(mongoClient, cfg.MongoDB)
		appLogger.Info("OfferRepository initialized")
	}

	var (
		offerCache  repository.OfferCache
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		appLogger.Info("Initializing Redis client...")
		redisClient, err = redisadapter.NewClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Errorf("Failed to initialize Redis client: %v", err)
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
		offerCache = redisadapter.NewOfferCacheRepository(redisClient)
		appLogger.Info("Redis offer cache initialized successfully")
	}

	var natsPub *natsadapter.Publisher
	var events service.EventPublisher
	if cfg.NATS.Enabled {
		appLogger.Info("Initializing NATS connection...")
		nc, err := natsadapter.NewConnection(cfg.NATS)
		if err != nil {
			appLogger.Errorf("Failed to initialize NATS connection: %v", err)
			return nil, fmt.Errorf("failed to initialize NATS connection: %w", err)
		}
		natsPub = natsadapter.NewPublisher(nc, appLogger)
		events = natsPub
		appLogger.Info("NATS publisher initialized successfully")
	}

	api, err := telegram.NewAPI(cfg.Telegram.BotToken)
	if err != nil {
		appLogger.Errorf("Failed to initialize Telegram API: %v", err)
		return nil, fmt.Errorf("failed to initialize Telegram API: %w", err)
	}
	appLogger.Info("Telegram API client initialized")

	gateway := telegram.NewGateway(api, schema, cfg.Telegram.GroupChatID, appLogger)

	offerService := service.NewOfferService(
		offerRepo,
		offerCache,
		gateway,
		events,
		schema,
		appLogger,
		cfg.OfferCache.TTL,
	)
	appLogger.Info("OfferService initialized")

	loc, err := time.LoadLocation(cfg.Stats.Timezone)
	if err != nil {
		appLogger.Errorf("Failed to load timezone %q: %v", cfg.Stats.Timezone, err)
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Stats.Timezone, err)
	}
	statsService := service.NewStatsService(offerRepo, loc)
	appLogger.Info("StatsService initialized")

	sessions := dialogue.NewSessionStore()
	engine := dialogue.NewEngine(schema, sessions, offerService, appLogger)
	appLogger.Info("Dialogue engine initialized")

	exporter := export.NewCSVExporter(offerRepo, schema, cfg.Export.Path, appLogger)
	authz := auth.NewAllowList(cfg.Auth.AllowedUserIDs)

	bot := telegram.NewBot(api, engine, offerService, statsService, exporter, authz, schema, appLogger)
	appLogger.Info("Telegram bot instance created")

	application := &App{
		cfg:         cfg,
		log:         appLogger,
		bot:         bot,
		mongoClient: mongoClient,
		redisClient: redisClient,
		natsPub:     natsPub,
	}

	return application, nil
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.bot.Run(ctx); err != nil {
			a.log.Fatalf("Failed to run Telegram bot: %v", err)
		}
	}()
	a.log.Info("Telegram bot started in a goroutine")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	a.log.Infof("Received shutdown signal: %v. Shutting down application...", receivedSignal)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	a.log.Info("Closing external connections...")

	if a.natsPub != nil {
		a.natsPub.Close()
		a.log.Info("NATS publisher closed successfully")
	}

	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
			a.log.Errorf("Error disconnecting from MongoDB: %v", err)
		} else {
			a.log.Info("MongoDB connection closed successfully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}

	a.log.Info("Application shut down successfully")
}
