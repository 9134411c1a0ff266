package queue

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxDeliver is the delivery attempt limit used when none is configured
const DefaultMaxDeliver = 5

// DefaultAckWait is the redelivery delay used when none is configured
const DefaultAckWait = 30 * time.Second

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishBatch publishes multiple messages and waits for all to complete.
	// Returns the number of successfully published messages.
	PublishBatch(ctx context.Context, messages []BatchMessage) (int, error)

	// Close closes the connection
	Close() error
}

// BatchMessage represents a message for batch publishing
type BatchMessage struct {
	Subject string
	Data    []byte
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with a handler
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// Message is one delivery of a published payload
type Message struct {
	Subject string
	Data    []byte
	Attempt int // 1 on first delivery
}

// MessageHandler handles incoming messages. A nil return acknowledges the
// message. An error wrapped with Permanent acknowledges and drops it; any
// other error asks for redelivery until the attempt limit is reached.
type MessageHandler func(ctx context.Context, msg *Message) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}

// Options tunes delivery behaviour shared by all backends
type Options struct {
	MaxDeliver int
	AckWait    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxDeliver <= 0 {
		o.MaxDeliver = DefaultMaxDeliver
	}
	if o.AckWait <= 0 {
		o.AckWait = DefaultAckWait
	}
	return o
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth redelivering
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
