package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/akiwumi/typemyaudio/internal/ports"
	"github.com/akiwumi/typemyaudio/internal/types"
)

var ErrClosed = errors.New("queue closed")

// Memory is an in-process queue for tests and single-binary runs. Messages that are
// nacked with requeue go back on the end of the queue.
type Memory struct {
	ch chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	acked  int
	nacked int
}

var (
	_ ports.JobQueue  = (*Memory)(nil)
	_ ports.JobSource = (*Memory)(nil)
)

func NewMemory(capacity int) *Memory {
	return &Memory{ch: make(chan []byte, capacity), done: make(chan struct{})}
}

func (m *Memory) Enqueue(ctx context.Context, msg types.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return m.EnqueueRaw(ctx, body)
}

// EnqueueRaw puts body on the queue unchanged. It blocks while the queue is full
// until ctx ends or the queue is closed.
func (m *Memory) EnqueueRaw(ctx context.Context, body []byte) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.ch <- body:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context) (<-chan ports.Delivery, error) {
	out := make(chan ports.Delivery)
	go func() {
		defer close(out)
		deliver := func(body []byte) bool {
			select {
			case out <- &memDelivery{q: m, body: body}:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case body := <-m.ch:
				if !deliver(body) {
					return
				}
			case <-m.done:
				for {
					select {
					case body := <-m.ch:
						if !deliver(body) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Close stops accepting messages; consumers drain what is already queued.
// Producers blocked on a full queue return ErrClosed.
func (m *Memory) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Counts reports how many deliveries were acked and nacked.
func (m *Memory) Counts() (acked, nacked int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked, m.nacked
}

type memDelivery struct {
	q    *Memory
	body []byte
	once sync.Once
}

func (d *memDelivery) Body() []byte { return d.body }

func (d *memDelivery) Ack() error {
	d.once.Do(func() {
		d.q.mu.Lock()
		d.q.acked++
		d.q.mu.Unlock()
	})
	return nil
}

func (d *memDelivery) Nack(requeue bool) error {
	var err error
	d.once.Do(func() {
		d.q.mu.Lock()
		d.q.nacked++
		d.q.mu.Unlock()
		if requeue {
			err = d.q.requeue(d.body)
		}
	})
	return err
}

// requeue puts body back without blocking the caller. When the queue is full the
// message waits in its own goroutine until there is room or the queue closes.
func (m *Memory) requeue(body []byte) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.ch <- body:
		return nil
	default:
	}
	go func() {
		select {
		case m.ch <- body:
		case <-m.done:
		}
	}()
	return nil
}
