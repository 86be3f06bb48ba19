// Package processor is the job driver: a fixed pool of workers pulling job messages
// off the queue and running each one through the pipeline.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const DefaultConcurrency = 2

// Runner processes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, msg types.QueueMessage) error
}

type Driver struct {
	source      ports.JobSource
	runner      Runner
	jobs        ports.JobRepository
	concurrency int
	log         *logrus.Entry
}

func NewDriver(source ports.JobSource, runner Runner, jobs ports.JobRepository, concurrency int) *Driver {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Driver{
		source:      source,
		runner:      runner,
		jobs:        jobs,
		concurrency: concurrency,
		log:         logger.New().WithField("component", "processor"),
	}
}

// Start consumes until ctx is cancelled or the source closes, then waits for jobs
// already in flight. A job that has started is never interrupted by ctx.
func (d *Driver) Start(ctx context.Context) error {
	deliveries, err := d.source.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	d.log.WithField("concurrency", d.concurrency).Info("worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := d.log.WithField("worker", worker)
			for {
				select {
				case <-ctx.Done():
					return
				case delivery, ok := <-deliveries:
					if !ok {
						return
					}
					d.handle(context.WithoutCancel(ctx), log, delivery)
				}
			}
		}(i)
	}

	wg.Wait()
	d.log.Info("worker pool stopped")
	return nil
}
