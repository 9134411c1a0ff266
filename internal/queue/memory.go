package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned when publishing to a closed memory queue
var ErrQueueClosed = errors.New("queue closed")

const memoryChannelCapacity = 10000

// MemoryQueue implements Queue with in-process channels. Failed deliveries
// are requeued until Options.MaxDeliver attempts have been made.
type MemoryQueue struct {
	opts          Options
	channels      map[string]chan *Message
	subscriptions map[string]context.CancelFunc
	closed        bool
	mu            sync.RWMutex

	acked   atomic.Int64
	dropped atomic.Int64
}

// MemoryStats counts settled deliveries
type MemoryStats struct {
	Acked   int64
	Dropped int64
}

// newMemoryQueue creates a new in-memory queue instance
func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		opts:          opts.withDefaults(),
		channels:      make(map[string]chan *Message),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

func (q *MemoryQueue) getOrCreateChannel(subject string) (chan *Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if ch, exists := q.channels[subject]; exists {
		return ch, nil
	}

	ch := make(chan *Message, memoryChannelCapacity)
	q.channels[subject] = ch
	return ch, nil
}

// enqueue sends without blocking. The read lock keeps Close from closing
// the channel mid-send.
func (q *MemoryQueue) enqueue(ctx context.Context, msg *Message) error {
	if _, err := q.getOrCreateChannel(msg.Subject); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	ch := q.channels[msg.Subject]

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", msg.Subject)
	}
}

// Publish publishes a copy of data to subject
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return q.enqueue(ctx, &Message{Subject: subject, Data: dataCopy, Attempt: 1})
}

// PublishBatch publishes multiple messages
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	successCount := 0
	var lastErr error
	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Subject, msg.Data); err != nil {
			lastErr = err
			continue
		}
		successCount++
	}
	if successCount == 0 && lastErr != nil {
		return 0, lastErr
	}
	return successCount, nil
}

// Subscribe consumes subject in a background goroutine
func (q *MemoryQueue) Subscribe(subject string, handler MessageHandler) error {
	ch, err := q.getOrCreateChannel(subject)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if _, exists := q.subscriptions[subject]; exists {
		q.mu.Unlock()
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.subscriptions[subject] = cancel
	q.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				q.deliver(ctx, handler, msg)
			}
		}
	}()

	return nil
}

func (q *MemoryQueue) deliver(ctx context.Context, handler MessageHandler, msg *Message) {
	err := handler(ctx, msg)
	switch {
	case err == nil:
		q.acked.Add(1)
	case IsPermanent(err) || msg.Attempt >= q.opts.MaxDeliver:
		q.dropped.Add(1)
	default:
		retry := &Message{Subject: msg.Subject, Data: msg.Data, Attempt: msg.Attempt + 1}
		if q.enqueue(ctx, retry) != nil {
			q.dropped.Add(1)
		}
	}
}

// Unsubscribe stops the consumer for subject. Pending messages stay queued.
func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close stops all consumers and closes every channel. Close is idempotent.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	for subject, ch := range q.channels {
		close(ch)
		delete(q.channels, subject)
	}
	return nil
}

// PendingCount returns the number of queued messages for subject
func (q *MemoryQueue) PendingCount(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[subject]; exists {
		return len(ch)
	}
	return 0
}

// Stats returns the settled delivery counters
func (q *MemoryQueue) Stats() MemoryStats {
	return MemoryStats{Acked: q.acked.Load(), Dropped: q.dropped.Load()}
}
