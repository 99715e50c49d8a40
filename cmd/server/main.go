package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	httpadapter "github.com/citylistings/listing-service/internal/adapter/http"
	"github.com/citylistings/listing-service/internal/adapter/messaging/nats"
	"github.com/citylistings/listing-service/internal/adapter/repository/cache"
	"github.com/citylistings/listing-service/internal/adapter/repository/mongodb"
	"github.com/citylistings/listing-service/internal/adapter/storage/s3"
	"github.com/citylistings/listing-service/internal/config"
	"github.com/citylistings/listing-service/internal/listing/usecase"
	"github.com/citylistings/listing-service/internal/mailer"
	"github.com/citylistings/listing-service/internal/platform/logger"
	"github.com/citylistings/listing-service/internal/platform/tracer"
	"github.com/citylistings/listing-service/internal/postcode"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewLogger()
	log.Info("Starting listing service", "http_port", cfg.HTTPPort)

	tp := tracer.InitTracer("listing-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("Tracer shutdown failed", "error", err.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	cancel()
	if err != nil {
		log.Error("Failed to connect to MongoDB", "error", err.Error())
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		cancelPing()
		log.Error("MongoDB ping failed", "error", err.Error())
		os.Exit(1)
	}
	cancelPing()
	db := mongoClient.Database(cfg.MongoDB)

	listingRepo := mongodb.NewListingRepository(db, log)
	photoRepo := mongodb.NewPhotoRepository(db, log)
	phoneViewRepo := mongodb.NewPhoneViewRepository(db, log)

	idxCtx, cancelIdx := context.WithTimeout(context.Background(), 15*time.Second)
	for _, ensure := range []func(context.Context) error{
		listingRepo.EnsureIndexes,
		photoRepo.EnsureIndexes,
		phoneViewRepo.EnsureIndexes,
	} {
		if err := ensure(idxCtx); err != nil {
			cancelIdx()
			log.Error("Failed to ensure indexes", "error", err.Error())
			os.Exit(1)
		}
	}
	cancelIdx()

	storage, err := s3.NewS3Storage(s3.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}, log)
	if err != nil {
		log.Error("Failed to initialize object storage", "error", err.Error())
		os.Exit(1)
	}

	listingCache, err := cache.NewListingCache(cfg.RedisAddress)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err.Error())
		os.Exit(1)
	}
	defer listingCache.Close()

	publisher, err := nats.NewPublisher(cfg.NATSURL)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err.Error())
		os.Exit(1)
	}
	defer publisher.Close()

	smtpMailer := mailer.NewSMTPMailer(cfg.SMTP)
	postcodeClient := postcode.NewClient(cfg.PostcodesURL, log)

	listingUC := usecase.NewListingUsecase(listingRepo, photoRepo, phoneViewRepo, storage, log, cfg.SignedURLTTL)
	photoUC := usecase.NewPhotoUsecase(storage, photoRepo, listingRepo, log, cfg.SignedURLTTL)

	handler := httpadapter.NewHandler(listingUC, photoUC, listingCache, publisher, smtpMailer, postcodeClient, log)
	app := httpadapter.NewServer(handler, cfg.JWTSecret, log)

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Error("HTTP server stopped", "error", err.Error())
			os.Exit(1)
		}
	}()
	log.Info("HTTP server listening", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Graceful shutdown failed", "error", err.Error())
	}
}
