package services

import (
	"github.com/openpowerquality/opq-sub000/internal/aggregation"
	"github.com/openpowerquality/opq-sub000/internal/config"
)

// EngineOptions translates the trends config section into rollup options
func EngineOptions(cfg config.TrendsConfig) (aggregation.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return aggregation.Options{}, err
	}
	return aggregation.Options{
		Location:         loc,
		SamplingInterval: cfg.SamplingInterval,
		MaxParallelBoxes: cfg.MaxParallelBoxes,
		MaxRangeDays:     cfg.MaxRangeDays,
	}, nil
}
