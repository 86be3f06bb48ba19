// Package app wires configuration into the concrete store, providers, queue and
// pipeline shared by the api, worker and tmactl binaries.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/akiwumi/typemyaudio/internal/config"
	"github.com/akiwumi/typemyaudio/internal/export"
	"github.com/akiwumi/typemyaudio/internal/extractor"
	"github.com/akiwumi/typemyaudio/internal/pipeline"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/queue"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/storage"
	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/transcription"
)

type App struct {
	Config  config.Config
	Store   *store.Store
	Ledger  *quota.Ledger
	Storage *storage.Local
	Exports *export.Service
}

// Wire opens the state store and object storage described by cfg. v carries the
// state_path key for the store.
func Wire(cfg config.Config, v *viper.Viper) (*App, error) {
	if v == nil {
		v = viper.New()
		v.Set(store.StatePathKey, cfg.StatePath)
	}
	st, err := store.NewFile(v)
	if err != nil {
		return nil, fmt.Errorf("wire state store: %w", err)
	}
	return &App{
		Config:  cfg,
		Store:   st,
		Ledger:  quota.NewLedger(st, st, nil),
		Storage: storage.NewLocal(afero.NewOsFs(), cfg.StorageRoot),
		Exports: export.NewService(st, st),
	}, nil
}

// Pipeline builds the enrichment pipeline with the configured providers. Mock
// providers are used when the USE_MOCK_* switches are set.
func (a *App) Pipeline() *pipeline.Pipeline {
	fs := afero.NewOsFs()
	cfg := a.Config
	stt := transcription.New(transcription.Config{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.STTModel,
		Timeout:    cfg.HTTPTimeout,
		MaxElapsed: cfg.MaxRetryElapsed,
		Fs:         fs,
	}, cfg.UseMockTranscribe)
	lm := extractor.New(extractor.Config{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.LLMModel,
		Timeout:    cfg.HTTPTimeout,
		MaxElapsed: cfg.MaxRetryElapsed,
	}, cfg.UseMockLLM)

	return pipeline.New(pipeline.Deps{
		Jobs:        a.Store,
		Profiles:    a.Store,
		Storage:     a.Storage,
		Scratch:     storage.NewScratch(fs, cfg.ScratchDir, cfg.WorkerConcurrency),
		Transcriber: stt,
		Enricher:    extractor.NewEnricher(lm),
		Ledger:      a.Ledger,
	})
}

// Queue is both ends of the job queue plus its shutdown.
type Queue interface {
	ports.JobQueue
	ports.JobSource
	Close() error
}

type memoryQueue struct{ *queue.Memory }

func (m memoryQueue) Close() error {
	m.Memory.Close()
	return nil
}

// OpenQueue dials RabbitMQ when RABBITMQ_URL is set. Without it an in-process queue
// is returned and embedded reports true: the caller must run the worker pool itself.
func (a *App) OpenQueue(ctx context.Context) (q Queue, embedded bool, err error) {
	if a.Config.RabbitMQURL == "" {
		return memoryQueue{queue.NewMemory(64)}, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	rq, err := queue.DialRabbitMQ(a.Config.RabbitMQURL, a.Config.QueueName, a.Config.WorkerConcurrency, a.Config.MaxRetryElapsed)
	if err != nil {
		return nil, false, err
	}
	return rq, false, nil
}
