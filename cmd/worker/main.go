package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/akiwumi/typemyaudio/internal/app"
	"github.com/akiwumi/typemyaudio/internal/config"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/processor"
)

func main() {
	log := logger.New()
	log.WithField("service", "typemyaudio-worker").Info("starting worker")

	cfg, v, err := config.Load(nil)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(cfg.LogLevel)
	config.Watch(v, log, nil)

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for a standalone worker")
	}

	a, err := app.Wire(cfg, v)
	if err != nil {
		log.WithError(err).Fatal("failed to wire dependencies")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("queue", cfg.QueueName).Info("connecting to RabbitMQ")
	q, _, err := a.OpenQueue(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to open job queue")
	}
	defer q.Close()

	driver := processor.NewDriver(q, a.Pipeline(), a.Store, cfg.WorkerConcurrency)
	if err := driver.Start(ctx); err != nil {
		log.WithError(err).Error("worker stopped with error")
		return
	}
	log.Info("worker stopped")
}
