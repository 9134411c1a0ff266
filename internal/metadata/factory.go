package metadata

import (
	"github.com/openpowerquality/opq-sub000/internal/config"
)

// NewRegistry returns an EtcdRegistry when endpoints are configured and an
// empty MemoryRegistry otherwise
func NewRegistry(cfg config.EtcdConfig) (Registry, error) {
	if len(cfg.Endpoints) == 0 {
		return NewMemoryRegistry(), nil
	}
	return NewEtcdRegistry(cfg)
}
