package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// setupTestNATS starts an embedded JetStream server and returns its URL
func setupTestNATS(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns.ClientURL()
}

// recorder collects delivered messages for assertions
type recorder struct {
	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1000)}
}

func (r *recorder) record(msg *Message) {
	r.mu.Lock()
	r.messages = append(r.messages, *msg)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// waitFor blocks until n deliveries have been recorded
func (r *recorder) waitFor(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if len(r.snapshot()) >= n {
			return
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("Timed out waiting for %d deliveries, got %d", n, len(r.snapshot()))
		}
	}
}

// handler records every delivery, then returns outcome(msg)
func (r *recorder) handler(outcome func(msg *Message) error) MessageHandler {
	return func(_ context.Context, msg *Message) error {
		r.record(msg)
		if outcome == nil {
			return nil
		}
		return outcome(msg)
	}
}
