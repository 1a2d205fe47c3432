package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/joeldelcastillo/verndale-chat-app/internal/api"
	"github.com/joeldelcastillo/verndale-chat-app/internal/auth"
	"github.com/joeldelcastillo/verndale-chat-app/internal/chat"
	cfgpkg "github.com/joeldelcastillo/verndale-chat-app/internal/config"
	"github.com/joeldelcastillo/verndale-chat-app/internal/events"
	"github.com/joeldelcastillo/verndale-chat-app/internal/logger"
	"github.com/joeldelcastillo/verndale-chat-app/internal/media"
	"github.com/joeldelcastillo/verndale-chat-app/internal/metrics"
	"github.com/joeldelcastillo/verndale-chat-app/internal/notify"
	"github.com/joeldelcastillo/verndale-chat-app/internal/presence"
	"github.com/joeldelcastillo/verndale-chat-app/internal/store"
)

func main() {
	_ = godotenv.Load() // load .env if present

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo
	mc, err := store.NewMongoClient(ctx, cfg)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	cols := store.NewCollections(mc, cfg)

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Kafka
	producer := events.NewProducer(cfg)
	defer producer.Close()
	sentConsumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, cfg.Kafka.GroupID, zlog)
	defer sentConsumer.Close()
	resizeConsumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicImageResized, cfg.Kafka.GroupID, zlog)
	defer resizeConsumer.Close()

	// S3
	s3store, err := media.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicRead)
	if err != nil {
		zlog.Fatalw("s3 init", "err", err)
	}

	tracker := presence.NewTracker(rdb, cols.Users, cfg.Redis.Prefix, cfg.PresenceTTL, zlog)
	tokens := auth.NewTokenManager(cfg.App.JWTSecret, 24*time.Hour)
	authSvc := auth.NewService(cols.Users, cols.PrivateUsers, cols.Credentials, tokens, zlog)
	chatSvc := chat.NewService(cols.Conversations, cols.PrivateUsers, cols.Messages, producer, zlog)
	mediaSvc := media.NewService(s3store, producer, time.Hour, zlog)
	resizeHandler := media.NewResizeHandler(s3store, cols.Users, time.Hour, zlog)
	notifySvc := notify.NewService(cols.PrivateUsers, tracker, zlog)

	go sentConsumer.Run(ctx, notifySvc.HandleMessageSent)
	go resizeConsumer.Run(ctx, resizeHandler.Handle)
	go chatSvc.RunReconcileLoop(ctx, cfg.ReconcileEvery)

	srv := api.NewServer(cfg, zlog, authSvc, chatSvc, mediaSvc, cols, tracker, tokens, rdb)
	go func() {
		if err := srv.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("chatd started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	cancel()
	if err := srv.Shutdown(); err != nil {
		zlog.Errorw("server shutdown", "err", err)
	}
	zlog.Infow("chatd stopped")
}
