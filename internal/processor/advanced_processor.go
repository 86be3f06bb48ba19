package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/pipeline"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

// handle runs one delivery. Malformed messages are dropped; everything else is acked
// once the pipeline returns, whatever the outcome, since jobs are never retried.
func (d *Driver) handle(ctx context.Context, log *logrus.Entry, delivery ports.Delivery) {
	var msg types.QueueMessage
	if err := json.Unmarshal(delivery.Body(), &msg); err != nil || msg.JobID == "" || msg.AccountID == "" {
		log.WithField("body", string(delivery.Body())).Error("dropping malformed job message")
		if nerr := delivery.Nack(false); nerr != nil {
			log.WithError(nerr).Warn("nack failed")
		}
		return
	}

	log = log.WithFields(logrus.Fields{"job_id": msg.JobID, "account_id": msg.AccountID})
	start := time.Now()

	if err := d.runSafely(ctx, msg); err != nil {
		log.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).Warn("job failed")
	} else {
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("job finished")
	}

	if err := delivery.Ack(); err != nil {
		log.WithError(err).Warn("ack failed")
	}
}

// runSafely converts a panic inside the pipeline into a failed job.
func (d *Driver) runSafely(ctx context.Context, msg types.QueueMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			d.log.WithFields(logrus.Fields{"job_id": msg.JobID, "stack": string(debug.Stack())}).Error("pipeline panicked")
			if _, uerr := d.jobs.UpdateJob(ctx, msg.JobID, func(j *types.Job) error {
				j.Status = types.StatusFailed
				j.ErrorMessage = pipeline.GenericFailure
				return nil
			}); uerr != nil {
				d.log.WithError(uerr).Error("could not mark panicked job failed")
			}
		}
	}()
	return d.runner.Run(ctx, msg)
}
