package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-media-service/cleanup"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/consumer/worker"
	infraPkg "github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventConsumer := worker.NewMediaEventConsumer(infra.RabbitMQ.Channel, infra.Disks, repo.MediaRepo, infra.Logger)
	if err := eventConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Media event consumer: %v", err)
		log.Fatalf("Failed to start Media event consumer: %v", err)
	}

	cleanupConsumer := worker.NewCleanupConsumer(infra.RabbitMQ.Channel, cleanup.NewServiceSweeper(cfg, infra, repo), infra.Logger)
	if err := cleanupConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Cleanup consumer: %v", err)
		log.Fatalf("Failed to start Cleanup consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	infra.RabbitMQ.Close()
	if err := infra.Logger.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to flush telemetry: %v", err)
	}

	log.Println("Consumer exited properly")
}
