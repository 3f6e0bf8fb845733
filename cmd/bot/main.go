package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"question_rotation_bot/internal/app"
	"question_rotation_bot/internal/domain/cycle"
	"question_rotation_bot/internal/infra/cache"
	"question_rotation_bot/internal/infra/config"
	idb "question_rotation_bot/internal/infra/database"
	"question_rotation_bot/internal/infra/logger"
	"question_rotation_bot/internal/infra/scheduler"
	"question_rotation_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

type cacheStore interface {
	app.Cache
	Close() error
}

func main() {
	fmt.Println("Question Rotation Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Configuration loaded.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.Migrate(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database schema")
	}
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	regionRepo := idb.NewPostgresRegionRepository(db)
	questionRepo := idb.NewPostgresQuestionRepository(db)
	userRepo := idb.NewPostgresUserRepository(db)

	var store cacheStore
	if cfg.RedisAddr != "" {
		store, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to Redis")
		}
		mainLogger.WithField("addr", cfg.RedisAddr).Info("Redis cache connected.")
	} else {
		store = cache.NewMemoryCache()
		mainLogger.Warn("REDIS_ADDR is empty, using the in-process cache; transition markers are not shared between instances.")
	}
	defer store.Close()

	calc := cycle.NewCalculator(cfg.TransitionHour)

	transitionScheduler := scheduler.NewTransitionScheduler(
		logger.Component("scheduler"),
		cfg.ReconcileCronSpec,
		cfg.TransitionJobTimeout,
	)
	transitionService := app.NewTransitionService(regionRepo, store, calc, transitionScheduler, cfg.MarkerTTL, logger.Component("transitions"))
	questionService := app.NewQuestionService(regionRepo, questionRepo, userRepo, store, calc,
		app.MarkerWait{Attempts: cfg.MarkerPollAttempts, Delay: cfg.MarkerPollDelay},
		logger.Component("questions"))
	adminService := app.NewAdminService(regionRepo, questionRepo, userRepo, store, transitionService, calc,
		cfg.DefaultCycleDuration, cfg.AdminTelegramID, logger.Component("admin"))

	// Initialize Telegram Bot
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"message": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler failed")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	transitionService.SetNotifier(app.NewAdminTransitionNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, logger.Component("notifier")))

	// Arm every region from its persisted state before the timer loop starts.
	regions, err := regionRepo.ListAll(ctx)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load regions")
	}
	if err := transitionService.BootstrapSchedules(ctx, regions); err != nil {
		mainLogger.WithError(err).Error("Some regions could not be armed; they stay frozen until their config is fixed")
	}
	if err := transitionScheduler.Start(ctx, transitionService); err != nil {
		mainLogger.WithError(err).Fatal("Could not start transition scheduler")
	}

	// Register Handlers
	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, cfg.AdminTelegramID, userRepo, handlerLogger)
	telegram.RegisterQuestionHandlers(ctx, bot, questionService, cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, calc, cfg.AdminTelegramID, handlerLogger)
	mainLogger.Info("Application setup complete. Bot and scheduler are running.")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	transitionScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
