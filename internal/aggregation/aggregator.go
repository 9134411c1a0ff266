package aggregation

import (
	"math"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// Channel identifies one measured quantity on a trend record
type Channel int

const (
	ChannelVoltage Channel = iota
	ChannelFrequency
	ChannelTHD

	numChannels
)

// Channels lists every channel in output order
var Channels = [numChannels]Channel{ChannelVoltage, ChannelFrequency, ChannelTHD}

func (c Channel) String() string {
	switch c {
	case ChannelVoltage:
		return "voltage"
	case ChannelFrequency:
		return "frequency"
	case ChannelTHD:
		return "thd"
	default:
		return "unknown"
	}
}

// sample returns the record's value for the channel, nil when absent
func (c Channel) sample(r *models.TrendRecord) *models.ChannelSample {
	switch c {
	case ChannelVoltage:
		return r.Voltage
	case ChannelFrequency:
		return r.Frequency
	case ChannelTHD:
		return r.THD
	default:
		return nil
	}
}

// Accumulator is the running statistic for one channel of one bucket.
// Mean is an incremental mean of the folded averages, weighted by record count only.
type Accumulator struct {
	Min     float64
	MinDate int64 // timestamp_ms of the record that produced Min
	Max     float64
	MaxDate int64 // timestamp_ms of the record that produced Max
	Mean    float64
	Count   int64
}

// NewAccumulator returns an empty accumulator
func NewAccumulator() Accumulator {
	return Accumulator{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// Fold adds one trend sample. A nil sample leaves the accumulator unchanged.
func (a Accumulator) Fold(s *models.ChannelSample, timestampMs int64) Accumulator {
	if s == nil {
		return a
	}
	return a.fold(s.Min, timestampMs, s.Max, timestampMs, s.Average)
}

// FoldSummary adds a finalized lower-level summary as if it were one sample.
// The summary's own extrema dates are carried over.
func (a Accumulator) FoldSummary(cs *ChannelSummary) Accumulator {
	if cs == nil {
		return a
	}
	return a.fold(cs.Min, cs.MinDate, cs.Max, cs.MaxDate, cs.Average)
}

func (a Accumulator) fold(min float64, minDate int64, max float64, maxDate int64, avg float64) Accumulator {
	a.Count++
	if min < a.Min {
		a.Min = min
		a.MinDate = minDate
	}
	if max > a.Max {
		a.Max = max
		a.MaxDate = maxDate
	}
	a.Mean += (avg - a.Mean) / float64(a.Count)
	return a
}

// Finalize freezes the accumulator. It returns nil when nothing was folded so
// that "no data" stays distinguishable from a measured zero.
func (a Accumulator) Finalize() *ChannelSummary {
	if a.Count == 0 {
		return nil
	}
	return &ChannelSummary{
		Min:     a.Min,
		MinDate: a.MinDate,
		Max:     a.Max,
		MaxDate: a.MaxDate,
		Average: a.Mean,
		Count:   a.Count,
	}
}

// ChannelSummary is the finalized statistic for one channel
type ChannelSummary struct {
	Min     float64 `json:"min"`
	MinDate int64   `json:"minDate"`
	Max     float64 `json:"max"`
	MaxDate int64   `json:"maxDate"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}
