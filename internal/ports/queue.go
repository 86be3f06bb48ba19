package ports

import (
	"context"
	"time"

	"github.com/akiwumi/typemyaudio/internal/types"
)

type JobQueue interface {
	Enqueue(ctx context.Context, msg types.QueueMessage) error
}

// Delivery is one dequeued message. Exactly one of Ack or Nack must be called.
type Delivery interface {
	Body() []byte
	Ack() error
	Nack(requeue bool) error
}

type JobSource interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
