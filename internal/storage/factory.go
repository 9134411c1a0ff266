package storage

import (
	"context"

	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/logging"
)

// NewStore returns a MongoStore when a URI is configured and a MemoryStore otherwise
func NewStore(ctx context.Context, cfg config.MongoConfig, logger *logging.Logger) (Store, error) {
	if cfg.URI == "" {
		logger.Warn("No mongo.uri configured, trends are kept in memory")
		return NewMemoryStore(logger), nil
	}
	return NewMongoStore(ctx, cfg, logger)
}
