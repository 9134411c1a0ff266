package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")         // Current directory
		v.AddConfigPath("./configs") // Project configs directory
		v.AddConfigPath("./config")  // Alternative config directory
		v.AddConfigPath("/etc/opq")  // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. OPQ_MONGO_URI
	v.SetEnvPrefix("OPQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Trends defaults
	v.SetDefault("trends.timezone", "UTC")
	v.SetDefault("trends.sampling_interval", "1m")
	v.SetDefault("trends.max_parallel_boxes", 8)
	v.SetDefault("trends.max_range_days", 3660)

	// Mongo defaults
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "opq")
	v.SetDefault("mongo.timeout", "10s")

	// Etcd defaults
	v.SetDefault("etcd.endpoints", []string{"http://localhost:2379"})
	v.SetDefault("etcd.dial_timeout", "5s")
	v.SetDefault("etcd.prefix", "/opq/boxes/")
	v.SetDefault("etcd.cache_ttl", "30s")

	// Queue defaults
	v.SetDefault("queue.type", "nats")
	v.SetDefault("queue.url", "nats://localhost:4222")
	v.SetDefault("queue.max_deliver", 5)
	v.SetDefault("queue.ack_wait", "30s")
	v.SetDefault("queue.redis_stream", "opq")
	v.SetDefault("queue.redis_group", "opq-ingest")
	v.SetDefault("queue.kafka_group_id", "opq-ingest")

	// Ingest defaults
	v.SetDefault("ingest.subject", "opq.trends")
	v.SetDefault("ingest.host", "0.0.0.0")
	v.SetDefault("ingest.http_port", 8194)
	v.SetDefault("ingest.verify_boxes", true)
	v.SetDefault("ingest.write_timeout", "15s")
	v.SetDefault("ingest.compress", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Trends: TrendsConfig{
			Timezone:         "UTC",
			SamplingInterval: time.Minute,
			MaxParallelBoxes: 8,
			MaxRangeDays:     3660,
		},
		Mongo: MongoConfig{
			Database: "opq",
			Timeout:  10 * time.Second,
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
			Prefix:      "/opq/boxes/",
			CacheTTL:    30 * time.Second,
		},
		Queue: QueueConfig{
			Type:         "nats",
			URL:          "nats://localhost:4222",
			MaxDeliver:   5,
			AckWait:      30 * time.Second,
			RedisStream:  "opq",
			RedisGroup:   "opq-ingest",
			KafkaGroupID: "opq-ingest",
		},
		Ingest: IngestConfig{
			Subject:      "opq.trends",
			Host:         "0.0.0.0",
			HTTPPort:     8194,
			VerifyBoxes:  true,
			WriteTimeout: 15 * time.Second,
			Compress:     true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
