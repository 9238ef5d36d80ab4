package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/diagnosia-api/internal/config"
	"github.com/harentsoaR/diagnosia-api/internal/handlers"
	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/metrics"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/services"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Info("no .env file found, relying on environment variables")
	}
	if cfg.DevMode() {
		logger.Warn("running in development mode, error details are exposed")
	}
	loc := cfg.Location()

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		cancel()
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	if err := client.Ping(ctx, nil); err != nil {
		cancel()
		logger.Error("failed to ping MongoDB", "error", err)
		os.Exit(1)
	}
	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		cancel()
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}
	cancel()
	logger.Info("connected to MongoDB", "database", cfg.MongoDatabase)
	repos := repository.NewMongoRepositories(db)

	// --- Redis (rate limiting) ---
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", "addr", cfg.Redis.Addr, "error", err)
			_ = rdb.Close()
			rdb = nil
		}
		pingCancel()
	}

	// --- Initialize Services ---
	m := metrics.New(nil)
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.JWTExpire)

	if !cfg.Twilio.Configured() {
		logger.Warn("Twilio credentials missing, SMS sending will fail")
	}
	sender := services.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
	notifier := services.NewNotificationService(sender, loc, logger, m)

	analyzer, err := services.NewGeminiAnalyzer(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, logger, m)
	if err != nil {
		logger.Error("failed to create AI client", "error", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	var s3Client services.S3API
	if cfg.Storage.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			logger.Warn("AWS configuration unavailable, document uploads disabled", "error", err)
		} else {
			s3Client = s3.NewFromConfig(awsCfg)
		}
	} else {
		logger.Warn("S3_BUCKET not set, document uploads disabled")
	}
	store := services.NewS3Store(s3Client, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.PublicBaseURL, logger)

	var events services.EventPublisher = services.NoopPublisher{}
	if cfg.RabbitURL != "" {
		rabbit := services.NewRabbitPublisher(cfg.RabbitURL, logger)
		defer rabbit.Close()
		events = rabbit
	}

	authSvc := services.NewAuthService(repos.Users, tokens, notifier, logger)
	appointmentSvc := services.NewAppointmentService(repos.Users, repos.Appointments, notifier, events, loc, logger)
	historySvc := services.NewMedicalHistoryService(repos.MedicalHistory, repos.Appointments, repos.Users, store, analyzer, logger)

	var reminders *services.ReminderJob
	if cfg.Reminders.Enabled {
		reminders = services.NewReminderJob(repos.Users, repos.Appointments, notifier, cfg.Reminders.Interval, loc, logger)
		if err := reminders.Start(); err != nil {
			logger.Error("failed to start reminder job", "error", err)
			os.Exit(1)
		}
	}

	// --- Initialize Handlers and Router ---
	h := handlers.NewHandler(handlers.Services{
		Auth:         authSvc,
		Appointments: appointmentSvc,
		History:      historySvc,
		Analyzer:     analyzer,
	}, handlers.Options{
		DevMode:        cfg.DevMode(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	router := handlers.NewRouter(h, handlers.RouterDeps{
		Tokens:         tokens,
		Users:          repos.Users,
		Metrics:        m,
		RateLimit:      cfg.RateLimit,
		Redis:          rdb,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if reminders != nil {
		reminders.Stop()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("MongoDB disconnect failed", "error", err)
	}
}
