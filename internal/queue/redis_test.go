package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// newTestRedisQueue connects to REDIS_URL (default localhost) or skips
func newTestRedisQueue(t *testing.T, opts Options) *RedisQueue {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379"
	}

	q, err := newRedisQueue(RedisConfig{
		URL:      url,
		Stream:   fmt.Sprintf("opq-test-%d", time.Now().UnixNano()),
		Group:    "test-group",
		Consumer: "test-consumer",
		Options:  opts,
	})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := q.client.Keys(ctx, q.config.Stream+":*").Result()
		if len(keys) > 0 {
			q.client.Del(ctx, keys...)
		}
		_ = q.Close()
	})
	return q
}

func TestRedisQueue_Defaults(t *testing.T) {
	q := newTestRedisQueue(t, Options{})

	if q.config.MaxDeliver != DefaultMaxDeliver || q.config.AckWait != DefaultAckWait {
		t.Errorf("Expected default options, got %+v", q.config.Options)
	}
	if q.streamName("opq.trends") != q.config.Stream+":opq.trends" {
		t.Errorf("Unexpected stream name %q", q.streamName("opq.trends"))
	}
}

func TestRedisQueue_PublishSubscribe(t *testing.T) {
	q := newTestRedisQueue(t, Options{})
	ctx := context.Background()

	rec := newRecorder()
	if err := q.Subscribe("opq.trends", rec.handler(nil)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	n, err := q.PublishBatch(ctx, []BatchMessage{
		{Subject: "opq.trends", Data: []byte("a")},
		{Subject: "opq.trends", Data: []byte("b")},
	})
	if err != nil || n != 2 {
		t.Fatalf("PublishBatch = %d, %v", n, err)
	}

	rec.waitFor(t, 2, 10*time.Second)
	if string(rec.snapshot()[0].Data) != "a" {
		t.Errorf("Unexpected first payload %q", rec.snapshot()[0].Data)
	}
}

func TestRedisQueue_ReclaimPending(t *testing.T) {
	q := newTestRedisQueue(t, Options{MaxDeliver: 3, AckWait: 200 * time.Millisecond})

	rec := newRecorder()
	handler := rec.handler(func(msg *Message) error {
		if msg.Attempt == 1 {
			return errors.New("store unavailable")
		}
		return nil
	})
	if err := q.Subscribe("opq.retry", handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := q.Publish(context.Background(), "opq.retry", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	rec.waitFor(t, 2, 10*time.Second)
	if got := rec.snapshot()[1].Attempt; got != 2 {
		t.Errorf("Expected reclaimed attempt 2, got %d", got)
	}
}
