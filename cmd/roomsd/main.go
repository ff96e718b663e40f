package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/api"
	"meeting-resource-backend/internal/assistant"
	"meeting-resource-backend/internal/db"
	"meeting-resource-backend/internal/events"
	"meeting-resource-backend/internal/ledger"
	"meeting-resource-backend/internal/lock"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/notification"
	"meeting-resource-backend/internal/registry"
	"meeting-resource-backend/internal/search"
	"meeting-resource-backend/internal/store"
	"meeting-resource-backend/internal/sweeper"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	appLog, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("configuration loaded", "path", configPath)
	for _, n := range cfg.Notices {
		appLog.Warn("configuration notice", "notice", n)
	}

	loc, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		appLog.Fatal("unknown timezone", "timezone", cfg.Assistant.Timezone, "error", err)
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		appLog.Warn("VAPID keys are not configured; push notifications are disabled")
	}

	gormDB, err := db.Init(&cfg.Database, appLog.With("component", "db"))
	if err != nil {
		appLog.Fatal("failed to initialize database", "error", err)
	}
	appStore := store.NewGormStore(gormDB)
	appLog.Info("database initialized", "driver", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locker := newLocker(ctx, cfg.Lock, appLog)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.QueuePrefix, appLog)
	}
	defer publisher.Close()

	ledgerOpts := ledger.Options{
		Locker:    locker,
		Publisher: publisher,
		Logger:    appLog,
		Sequences: cfg.Sequences,
	}
	if webpushOptions != nil {
		workers := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, appLog)
		workers.Start(ctx)
		ledgerOpts.Notifier = workers
	}
	ledgerSvc := ledger.New(appStore, ledgerOpts)
	registrySvc := registry.New(appStore, cfg.Sequences.Asset, appLog)

	advisorOpts := search.Options{Timeout: cfg.Assistant.Timeout, Logger: appLog}
	var parser *assistant.Parser
	if cfg.Assistant.Enabled {
		client, err := assistant.NewGeminiClient(cfg.Assistant, appLog)
		if err != nil {
			appLog.Fatal("failed to create assistant client", "error", err)
		}
		parser = assistant.NewParser(client, loc, appStore, appLog)
		ranker := assistant.NewRanker(client, loc, appStore, appLog)
		advisorOpts.Ranker = ranker
		advisorOpts.SlotPicker = ranker
		appLog.Info("assistant enabled", "model", client.Model())
	}
	advisor := search.NewAdvisor(appStore, advisorOpts)

	sweeperSvc := sweeper.NewService(cfg.Sweeper, appStore, appLog)
	go sweeperSvc.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:    appStore,
		Registry: registrySvc,
		Ledger:   ledgerSvc,
		Advisor:  advisor,
		Parser:   parser,
		WebPush:  webpushOptions,
		Logger:   appLog,
	})
	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("HTTP server stopped unexpectedly", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	appLog.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", "error", err)
	}
	appLog.Info("server gracefully stopped")
}

func newLocker(ctx context.Context, cfg config.LockConfig, log *logger.Logger) lock.Locker {
	if cfg.Backend != "redis" {
		return lock.NewMemoryLocker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
	}
	log.Info("using redis locks", "addr", cfg.RedisAddr)
	return lock.NewRedisLocker(client, "meeting:lock", cfg.TTL, log)
}
