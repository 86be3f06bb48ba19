package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akiwumi/typemyaudio/internal/api"
	"github.com/akiwumi/typemyaudio/internal/app"
	"github.com/akiwumi/typemyaudio/internal/config"
	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/processor"
)

func main() {
	log := logger.New()
	log.WithField("service", "typemyaudio-api").Info("starting service")

	cfg, v, err := config.Load(nil)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(cfg.LogLevel)
	config.Watch(v, log, nil)

	a, err := app.Wire(cfg, v)
	if err != nil {
		log.WithError(err).Fatal("failed to wire dependencies")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, embedded, err := a.OpenQueue(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to open job queue")
	}
	defer q.Close()

	workerDone := make(chan struct{})
	if embedded {
		// no broker configured: run the worker pool in this process
		log.Warn("RABBITMQ_URL not set, running embedded worker")
		driver := processor.NewDriver(q, a.Pipeline(), a.Store, cfg.WorkerConcurrency)
		go func() {
			defer close(workerDone)
			if err := driver.Start(ctx); err != nil {
				log.WithError(err).Error("embedded worker stopped")
			}
		}()
	} else {
		close(workerDone)
	}

	srv := api.New(api.Deps{
		Jobs:    a.Store,
		Reports: a.Store,
		Ledger:  a.Ledger,
		Queue:   q,
		Storage: a.Storage,
		Exports: a.Exports,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithField("addr", addr).Info("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	<-workerDone
	log.Info("stopped")
}
