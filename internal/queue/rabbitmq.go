// Package queue carries job messages from the HTTP shell to the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/akiwumi/typemyaudio/internal/logger"
	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

const DefaultQueueName = "transcription"

type RabbitMQ struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int

	publishMu sync.Mutex
	log       *logrus.Entry
}

var (
	_ ports.JobQueue  = (*RabbitMQ)(nil)
	_ ports.JobSource = (*RabbitMQ)(nil)
)

// DialRabbitMQ connects, declares the durable queue and sets the prefetch window.
// The dial is retried with exponential backoff for up to maxElapsed.
func DialRabbitMQ(url, queueName string, prefetch int, maxElapsed time.Duration) (*RabbitMQ, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if prefetch < 1 {
		prefetch = 1
	}
	log := logger.New().WithField("component", "queue")

	var conn *amqp.Connection
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}, bo, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("rabbitmq not reachable yet")
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &RabbitMQ{conn: conn, ch: ch, queue: queueName, prefetch: prefetch, log: log}, nil
}

func (r *RabbitMQ) Enqueue(ctx context.Context, msg types.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	err = r.ch.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.JobID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Consume starts a manual-ack consumer. The returned channel closes when ctx is done
// or the broker closes the channel.
func (r *RabbitMQ) Consume(ctx context.Context) (<-chan ports.Delivery, error) {
	raw, err := r.ch.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("start consuming: %w", err)
	}

	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-raw:
				if !ok {
					r.log.Warn("rabbitmq delivery channel closed")
					return
				}
				select {
				case out <- amqpDelivery{d: d}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RabbitMQ) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return err
		}
	}
	r.log.Info("rabbitmq closed")
	return nil
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a amqpDelivery) Body() []byte            { return a.d.Body }
func (a amqpDelivery) Ack() error              { return a.d.Ack(false) }
func (a amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }
