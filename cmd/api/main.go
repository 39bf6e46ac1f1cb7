package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/risk-alert-api/internal/config"
	"github.com/noah-isme/risk-alert-api/internal/database"
	"github.com/noah-isme/risk-alert-api/internal/handler"
	"github.com/noah-isme/risk-alert-api/internal/middleware"
	"github.com/noah-isme/risk-alert-api/internal/repository"
	"github.com/noah-isme/risk-alert-api/internal/router"
	"github.com/noah-isme/risk-alert-api/internal/scoring"
	"github.com/noah-isme/risk-alert-api/internal/service"
	"github.com/noah-isme/risk-alert-api/internal/worker"
	"github.com/noah-isme/risk-alert-api/pkg/ai"
	cloud "github.com/noah-isme/risk-alert-api/pkg/cloudinary"
	"github.com/noah-isme/risk-alert-api/pkg/mailer"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, scheduler state and dispatch dedupe stay in memory")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, dispatch events go to redis only")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	recordRepo := repository.NewAcademicRecordRepository(db)

	remote := buildRemoteScorer(cfg, logger)

	composer, err := service.NewAlertComposer(cfg.MailFromName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load alert templates")
	}

	events := service.NewAlertEventPublisher(redisClient, cfg.EventChannel, natsConn, logger)
	dispatcher := service.NewAlertDispatcher(recordRepo, userRepo, composer, buildMailTransport(cfg, logger), events, logger)

	var scheduleStore service.ScheduleStore
	if redisClient != nil {
		scheduleStore = service.NewRedisScheduleStore(redisClient, cfg.EventChannel)
	}
	scheduler := service.NewAlertScheduler(dispatcher, scheduleStore, time.Local, logger)
	restoreSchedule(ctx, cfg, scheduler, logger)

	pool := worker.NewPool(cfg.DispatchWorkers, logger)
	pool.Start()
	deferred := service.NewDeferredDispatcher(pool, dispatcher, redisClient, cfg.EventChannel, logger)

	ingestService := service.NewIngestService(userRepo, recordRepo, logger)
	uploadService := service.NewRosterUploadService(ingestService, buildArchive(cfg, logger), deferred, cfg.UploadDispatchDelay, cfg.UploadMaxSizeMB, logger)
	studentService := service.NewStudentService(recordRepo, remote, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		StudentHandler:  handler.NewStudentHandler(studentService, logger),
		UploadHandler:   handler.NewUploadHandler(uploadService, logger),
		AlertHandler:    handler.NewAlertHandler(dispatcher, scheduler, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks:    healthChecks(db, redisClient, natsConn),
		UploadRateLimit: cfg.UploadRateLimit,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, scheduler, pool, logger)
}

func buildRemoteScorer(cfg config.Config, logger zerolog.Logger) service.RemoteScorer {
	switch cfg.ScorerProvider {
	case "http":
		if cfg.ScorerURL == "" {
			return nil
		}
		return scoring.NewHTTPClient(cfg.ScorerURL, cfg.ScorerTimeout, logger)
	case "openai":
		evaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("openai scorer disabled, using deterministic scoring")
			return nil
		}
		return scoring.NewEvaluatorScorer(evaluator)
	default:
		logger.Info().Str("provider", cfg.ScorerProvider).Msg("remote scorer disabled, using deterministic scoring")
		return nil
	}
}

func buildMailTransport(cfg config.Config, logger zerolog.Logger) service.MailTransport {
	transport, err := mailer.NewSendgridTransport(mailer.Config{
		APIKey:    cfg.SendgridAPIKey,
		FromName:  cfg.MailFromName,
		FromEmail: cfg.MailFromAddress,
	}, logger)
	if err != nil {
		if !errors.Is(err, mailer.ErrMissingAPIKey) {
			logger.Warn().Err(err).Msg("sendgrid misconfigured")
		}
		logger.Warn().Msg("alert emails will be logged instead of sent")
		return service.NewLogMailTransport(logger)
	}
	return transport
}

func buildArchive(cfg config.Config, logger zerolog.Logger) service.FileStorage {
	if !cfg.CloudinaryEnabled() {
		return nil
	}

	archive, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("roster archive disabled")
		return nil
	}
	return archive
}

// restoreSchedule prefers persisted state and only falls back to configuration on first boot.
func restoreSchedule(ctx context.Context, cfg config.Config, scheduler service.AlertScheduler, logger zerolog.Logger) {
	found, err := scheduler.Restore(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to restore alert schedule")
	}
	if found || !cfg.AlertScheduleEnabled {
		return
	}

	if _, err := scheduler.Enable(ctx, cfg.AlertSchedule); err != nil {
		logger.Error().Err(err).Str("schedule", cfg.AlertSchedule).Msg("configured alert schedule rejected")
	}
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, scheduler service.AlertScheduler, pool *worker.Pool, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	scheduler.Stop(ctx)
	pool.Stop(ctx)

	logger.Info().Msg("server stopped")
}
