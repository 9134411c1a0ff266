package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout bounds one admin HTTP request
	DefaultRequestTimeout = 30 * time.Second

	// ReadinessTimeout bounds the store ping behind /ready
	ReadinessTimeout = 2 * time.Second

	// ShutdownTimeout bounds graceful shutdown of a service
	ShutdownTimeout = 10 * time.Second

	// RollupTimeout bounds one rollup tool invocation
	RollupTimeout = 5 * time.Minute
)

// =============================================================================
// Queue Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// =============================================================================
// Ingest Constants
// =============================================================================

const (
	// MaxBatchRecords caps the number of trend records accepted in one batch
	MaxBatchRecords = 100000

	// MaxBatchBytes caps the decoded size of one batch payload
	MaxBatchBytes = 64 << 20
)
