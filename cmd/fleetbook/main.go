package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"fleetbook/internal/api"
	"fleetbook/internal/config"
	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/events"
	"fleetbook/internal/export"
	"fleetbook/internal/google"
	"fleetbook/internal/logging"
	"fleetbook/internal/metrics"
	"fleetbook/internal/models"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"
	"fleetbook/internal/service"
	"fleetbook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient, stateRepo := initStateRepo(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	eventBus := events.NewEventBus()

	calendarService := service.NewCalendarService(db, &logger)

	var syncWorker domain.SyncWorker
	if cfg.Google.Enabled {
		sheetsService, err := initGoogleSheets(ctx, cfg, calendarService, &logger)
		if err != nil {
			return err
		}
		w := worker.NewSyncWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		go w.Start(ctx)
		syncWorker = w
	}

	availabilityService := service.NewAvailabilityService(db, &logger)
	bookingService := service.NewBookingService(db, eventBus, syncWorker, cfg.Booking.MaxBookingDays, &logger)
	approvalService := service.NewApprovalService(db, eventBus, syncWorker, &logger)

	var ranker service.DriverRanker = service.ByIDRanker{}
	if cfg.Booking.DriverRanking == "least_recently_assigned" {
		ranker = service.NewLeastRecentlyAssignedRanker(db)
	}
	assignmentService := service.NewAssignmentService(db, availabilityService, eventBus, syncWorker, ranker, &logger)

	var exporter *export.Exporter
	if cfg.Exports.Path != "" {
		exporter = export.NewExporter(calendarService, cfg.Exports.Path, &logger)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(
			cfg.API.Port,
			bookingService,
			approvalService,
			assignmentService,
			availabilityService,
			calendarService,
			exporter,
			db,
			&logger,
		)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Telegram.Enabled {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create telegram bot")
			return err
		}
		botAPI.Debug = cfg.Telegram.Debug
		notifier := notify.NewTelegramNotifier(botAPI, cfg.Telegram.ChatID, stateRepo, &logger)
		notifier.SubscribeAll(eventBus)
	}

	escalation := service.NewEscalationService(
		approvalService,
		stateRepo,
		eventBus,
		time.Duration(cfg.Booking.PendingThresholdHours)*time.Hour,
		&logger,
	)
	go escalation.Run(ctx, time.Duration(cfg.Booking.ReminderInterval)*time.Minute)

	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			logger.Info().Str("addr", addr).Msg("metrics server started")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	logger.Info().Msg("fleetbook started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("failed to create export directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize database")
		return nil, err
	}

	if cfg.Fleet.Path != "" {
		if err := seedFleet(context.Background(), db, cfg.Fleet.Path, logger); err != nil {
			logger.Error().Err(err).Msg("fleet seed failed")
			return nil, err
		}
	}
	return db, nil
}

// seedFleet loads the vehicles and drivers declared in the fleet yaml file
// and upserts them, so the file stays the source of truth for the fleet.
func seedFleet(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fleet struct {
		Vehicles []models.Vehicle `yaml:"vehicles"`
		Drivers  []models.Driver  `yaml:"drivers"`
	}
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return err
	}

	for i := range fleet.Vehicles {
		if err := db.UpsertVehicle(ctx, &fleet.Vehicles[i]); err != nil {
			return fmt.Errorf("upsert vehicle %s: %w", fleet.Vehicles[i].Registration, err)
		}
	}
	for i := range fleet.Drivers {
		if err := db.UpsertDriver(ctx, &fleet.Drivers[i]); err != nil {
			return fmt.Errorf("upsert driver %s: %w", fleet.Drivers[i].Name, err)
		}
	}

	logger.Info().
		Int("vehicles", len(fleet.Vehicles)).
		Int("drivers", len(fleet.Drivers)).
		Msg("fleet seeded")
	return nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, calendar domain.CalendarBuilder, logger *zerolog.Logger) (*google.SheetsService, error) {
	sheetsSvc, err := google.NewSheetsService(
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.BookingSpreadSheetID,
		cfg.Google.ScheduleSheetName,
		calendar,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil, err
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil, err
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc, nil
}

func initStateRepo(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.StateRepository) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	ttl := time.Duration(models.ReminderStateTTL) * time.Second
	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	fallbackRepo := repository.NewMemoryStateRepository(ttl)
	return redisClient, repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
}
