package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"dripcast/config"
	controller "dripcast/controllers"
	"dripcast/engine"
	"dripcast/ledger"
	"dripcast/llm"
	"dripcast/mailer"
	"dripcast/models"
	"dripcast/routes"
	"dripcast/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Warnf("Failed to initialize Sentry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	contactLedger := ledger.New(db, logger)

	llmClient := llm.NewClient(cfg.OpenAI, logger)
	generator := llm.NewGenerator(llmClient, contactLedger, cfg.Sender, logger)
	classifier := llm.NewClassifier(llmClient, logger)

	quota := mailer.NewSendQuota(cfg.Redis, cfg.DailySendLimit)
	sender := mailer.New(cfg.SMTP, quota, logger)
	inbox := mailer.NewInbox(cfg.IMAP, logger)

	dripEngine := engine.NewDripEngine(contactLedger, generator, sender, cfg.Drip, logger)
	replyPipeline := engine.NewReplyPipeline(contactLedger, generator, classifier, sender, inbox, cfg.BookingURL, cfg.ReplyLookback, logger)

	scheduler := worker.NewScheduler(dripEngine, replyPipeline, logger)
	if err := scheduler.Setup(); err != nil {
		logger.Fatalf("Failed to set up scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	app := fiber.New()

	contacts := controller.NewContactController(contactLedger, cfg.BookingURL, logger)
	jobs := controller.NewJobController(dripEngine, replyPipeline, logger)
	routes.Setup(app, contacts, jobs)

	// Stop scheduled jobs cleanly on SIGINT/SIGTERM.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
		_ = app.Shutdown()
	}()

	logger.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
