package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Handler processes one message body taken off the queue.
type Handler = func(ctx context.Context, body []byte) error

// Broker moves job messages from the dispatcher to the workers.
// rabbitmq.Client satisfies it in production.
type Broker interface {
	Publish(ctx context.Context, body []byte) error
	Consume(handler Handler) error
	Close() error
}

// ErrBrokerClosed is returned when publishing to a closed ChannelBroker.
var ErrBrokerClosed = errors.New("broker closed")

// ChannelBroker is an in-process Broker: a buffered channel drained by a
// fixed pool of goroutines.
type ChannelBroker struct {
	jobs    chan []byte
	workers int
	log     *zap.Logger

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewChannelBroker creates a ChannelBroker with the given buffer size and
// number of consuming goroutines.
func NewChannelBroker(buffer, workers int, log *zap.Logger) *ChannelBroker {
	if workers < 1 {
		workers = 1
	}
	return &ChannelBroker{
		jobs:    make(chan []byte, buffer),
		workers: workers,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Publish queues body. It blocks only while the buffer is full, and gives up
// with ErrBrokerClosed once Close has been called.
func (b *ChannelBroker) Publish(ctx context.Context, body []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	select {
	case b.jobs <- body:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume starts the worker goroutines. Handler errors are logged; the
// message is dropped.
func (b *ChannelBroker) Consume(handler Handler) error {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for body := range b.jobs {
				if err := handler(context.Background(), body); err != nil {
					b.log.Error("failed to process queued job", zap.Error(err))
				}
			}
		}()
	}
	return nil
}

// Close stops accepting messages and waits for queued ones to be handled.
// Publishers blocked on a full buffer are released first.
func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.jobs)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
