package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/database"
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/jobs"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/payments"
	"github.com/anjiri1684/campus_manager/routes"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/anjiri1684/campus_manager/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("error", "json").WithError(err).Error("Invalid configuration", nil)
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		fatal(log, err, "Database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		fatal(log, err, "Database migration failed")
	}
	if err := database.SeedAdmin(db, cfg.Admin, log); err != nil {
		fatal(log, err, "Admin seed failed")
	}

	var (
		cache *database.RedisClient
		bus   websocket.Bus
	)
	if cfg.Redis.Enabled() {
		cache = database.NewRedis(cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			log.WithError(err).Warn("Redis unavailable, running single-instance", nil)
			cache = nil
		} else {
			defer cache.Close()
			bus = websocket.NewRedisBus(cache.Client, "campus:ws", log)
		}
	}

	hub := websocket.NewHub(log, bus)
	if err := hub.Start(ctx); err != nil {
		fatal(log, err, "WebSocket hub failed to start")
	}

	sender, err := notifications.NewSender(ctx, cfg.Email, log)
	if err != nil {
		fatal(log, err, "Email sender setup failed")
	}
	templates, err := notifications.NewTemplates()
	if err != nil {
		fatal(log, err, "Email templates failed to parse")
	}
	mailer := notifications.NewMailer(db, sender, templates, cfg.App.Name, log)

	sms, err := notifications.NewSMSSender(ctx, cfg.SMS)
	if err != nil {
		fatal(log, err, "SMS sender setup failed")
	}

	uploader, err := storage.New(cfg.Storage)
	if err != nil {
		fatal(log, err, "Storage setup failed")
	}
	log.Info("Storage ready", map[string]interface{}{"backend": uploader.Name()})

	receipts := services.NewReceiptService(db, services.ChromeRenderer{}, uploader, mailer, cfg.App.Name, log)
	paymentService := services.NewPaymentService(services.PaymentServiceConfig{
		DB:            db,
		Gateway:       payments.NewRazorpayGateway(cfg.Razorpay),
		Emitter:       hub,
		Receipts:      receipts,
		Logger:        log,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	})
	notificationService := services.NewNotificationService(db, hub, sms, log)

	h := handlers.New(handlers.Deps{
		DB:            db,
		Config:        cfg,
		Logger:        log,
		Cache:         cache,
		Hub:           hub,
		Mailer:        mailer,
		Uploader:      uploader,
		Payments:      paymentService,
		Receipts:      receipts,
		Notifications: notificationService,
		Chat:          services.NewChatService(db, hub, log),
		Events:        services.NewEventService(db, hub, log),
	})

	scheduler := cron.New()
	if cfg.Jobs.Enabled {
		runner := jobs.NewRunner(db, notificationService, paymentService, mailer, log)
		if err := runner.Schedule(scheduler, cfg.Jobs); err != nil {
			fatal(log, err, "Job scheduling failed")
		}
		scheduler.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimit,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.FrontendURL,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(metrics.Middleware())

	if uploader.Name() == "local" {
		app.Static("/uploads", cfg.Storage.LocalDir)
	}
	routes.Setup(app, h)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down", nil)
		<-scheduler.Stop().Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("Server is running", map[string]interface{}{"port": cfg.App.Port, "env": cfg.App.Env})
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		fatal(log, err, "Server failed to start")
	}
}

func fatal(log logger.Logger, err error, msg string) {
	log.WithError(err).Error(msg, nil)
	os.Exit(1)
}
