package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig represents Apache Kafka configuration
type KafkaConfig struct {
	Brokers      []string      // Kafka broker addresses
	GroupID      string        // Consumer group ID (default: opq-ingest)
	RequiredAcks int           // 0=none, 1=leader, -1=all (default: 1)
	WriteTimeout time.Duration // Producer write timeout (default: 10s)
	RetryBackoff time.Duration // Pause between handler attempts and fetch errors (default: 100ms)
	Options
}

// KafkaQueue implements Queue on Kafka topics named after subjects.
// Offsets are committed in order, so a failing batch is retried in place
// with RetryBackoff between attempts until MaxDeliver, then committed and
// dropped.
type KafkaQueue struct {
	config  KafkaConfig
	writer  *kafka.Writer
	readers map[string]*kafkaReader
	mu      sync.Mutex
}

type kafkaReader struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
}

// newKafkaQueue creates a new Kafka queue instance
func newKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "opq-ingest"
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	cfg.Options = cfg.Options.withDefaults()

	// Topic is set per message so one writer serves every subject
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &KafkaQueue{
		config:  cfg,
		writer:  writer,
		readers: make(map[string]*kafkaReader),
	}, nil
}

// Publish writes one message and waits for the configured acks
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.writer.WriteMessages(ctx, kafka.Message{Topic: subject, Value: data}); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// PublishBatch writes all messages in one producer call. On a partial
// failure kafka-go reports per-message errors, which are counted.
func (q *KafkaQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(messages))
	for i, m := range messages {
		msgs[i] = kafka.Message{Topic: m.Subject, Value: m.Data}
	}

	err := q.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return len(msgs), nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		failed := writeErrs.Count()
		if failed < len(msgs) {
			return len(msgs) - failed, nil
		}
	}
	return 0, fmt.Errorf("failed to publish batch: %w", err)
}

// Subscribe joins the consumer group for subject's topic, starting from the
// earliest retained offset when the group is new
func (q *KafkaQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.readers[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     q.config.Brokers,
		GroupID:     q.config.GroupID,
		Topic:       subject,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := &kafkaReader{reader: reader, cancel: cancel, done: make(chan struct{})}
	q.readers[subject] = r

	go func() {
		defer close(r.done)
		q.consumeMessages(ctx, subject, reader, handler)
	}()
	return nil
}

// consumeMessages fetches, delivers and commits one message at a time
func (q *KafkaQueue) consumeMessages(ctx context.Context, subject string, reader *kafka.Reader, handler MessageHandler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			if !sleepCtx(ctx, q.config.RetryBackoff) {
				return
			}
			continue
		}

		if !q.deliver(ctx, subject, msg, handler) {
			return
		}

		// An uncommitted offset is redelivered after a rebalance, which the
		// idempotent trend upsert absorbs
		for reader.CommitMessages(ctx, msg) != nil {
			if !sleepCtx(ctx, q.config.RetryBackoff) {
				return
			}
		}
	}
}

// deliver runs handler until it succeeds, fails permanently or runs out of
// attempts. It returns false only when ctx is cancelled mid-retry.
func (q *KafkaQueue) deliver(ctx context.Context, subject string, msg kafka.Message, handler MessageHandler) bool {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, &Message{Subject: subject, Data: msg.Value, Attempt: attempt})
		if err == nil || IsPermanent(err) || attempt >= q.config.MaxDeliver {
			return true
		}
		if !sleepCtx(ctx, q.config.RetryBackoff) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Unsubscribe stops the consumer for subject and leaves the group
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	r, exists := q.readers[subject]
	delete(q.readers, subject)
	q.mu.Unlock()

	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}
	return r.stop()
}

func (r *kafkaReader) stop() error {
	r.cancel()
	<-r.done
	return r.reader.Close()
}

// Close stops every consumer and flushes the writer
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	readers := q.readers
	q.readers = make(map[string]*kafkaReader)
	q.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := q.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
