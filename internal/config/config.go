package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Trends  TrendsConfig  `mapstructure:"trends"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TrendsConfig controls how trend rollups interpret time
type TrendsConfig struct {
	Timezone         string        `mapstructure:"timezone"`           // Calendar for day/month boundaries (e.g., "Pacific/Honolulu", "-10:00", "UTC")
	SamplingInterval time.Duration `mapstructure:"sampling_interval"`  // Nominal spacing of trend records; 1m gives 1440 expected records per day
	MaxParallelBoxes int           `mapstructure:"max_parallel_boxes"` // Concurrent per-box rollups in range queries
	MaxRangeDays     int           `mapstructure:"max_range_days"`     // Widest day range one daily-trends query may span
}

// MongoConfig represents the trend store connection.
// An empty URI selects the in-memory store.
type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"` // Connect and per-operation timeout
}

// EtcdConfig represents etcd configuration for the box registry
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Prefix      string        `mapstructure:"prefix"`    // Key prefix for box records
	CacheTTL    time.Duration `mapstructure:"cache_ttl"` // Registry lookup cache; 0 disables
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	MaxDeliver int           `mapstructure:"max_deliver"` // Delivery attempts before a message is dropped
	AckWait    time.Duration `mapstructure:"ack_wait"`    // Redelivery delay for unacknowledged messages

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "opq")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "opq-ingest")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// IngestConfig represents the trend ingest service
type IngestConfig struct {
	Subject      string        `mapstructure:"subject"`       // Queue subject carrying trend batches
	Host         string        `mapstructure:"host"`          // Admin HTTP bind address
	HTTPPort     int           `mapstructure:"http_port"`     // Admin HTTP port (/health, /ready, /metrics)
	VerifyBoxes  bool          `mapstructure:"verify_boxes"`  // Drop records of boxes missing from the registry
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // Timeout for one batch insert
	Compress     bool          `mapstructure:"compress"`      // Publish snappy-compressed batches (simulate tool)
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Trends.Validate(); err != nil {
		return fmt.Errorf("trends config: %w", err)
	}

	if err := c.Mongo.Validate(); err != nil {
		return fmt.Errorf("mongo config: %w", err)
	}

	if err := c.Etcd.Validate(); err != nil {
		return fmt.Errorf("etcd config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates trend rollup configuration
func (c *TrendsConfig) Validate() error {
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("trends.sampling_interval must be positive")
	}

	if c.SamplingInterval > 24*time.Hour {
		return fmt.Errorf("trends.sampling_interval cannot exceed 24h")
	}

	if c.MaxParallelBoxes < 1 {
		return fmt.Errorf("trends.max_parallel_boxes must be at least 1")
	}

	if c.MaxRangeDays < 1 {
		return fmt.Errorf("trends.max_range_days must be at least 1")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Validate validates mongo configuration
func (c *MongoConfig) Validate() error {
	if c.URI != "" && c.Database == "" {
		return fmt.Errorf("mongo.database is required when mongo.uri is set")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("mongo.timeout must be positive")
	}

	return nil
}

// Validate validates etcd configuration
func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("etcd.dial_timeout must be positive")
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("etcd.cache_ttl cannot be negative")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "nats", "redis", "kafka", "memory":
	default:
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory")
	}

	if c.MaxDeliver < 0 {
		return fmt.Errorf("queue.max_deliver cannot be negative")
	}

	if c.AckWait < 0 {
		return fmt.Errorf("queue.ack_wait cannot be negative")
	}

	if c.Type == "kafka" && len(c.KafkaBrokers) == 0 && c.URL == "" {
		return fmt.Errorf("queue.kafka_brokers or queue.url is required for kafka")
	}

	return nil
}

// Validate validates ingest configuration
func (c *IngestConfig) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("ingest.subject is required")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid ingest.http_port: %d", c.HTTPPort)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("ingest.write_timeout must be positive")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
