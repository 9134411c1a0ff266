package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// generator produces synthetic OPQ Box trend records
type generator struct {
	rng      *rand.Rand
	boxIDs   []string
	start    time.Time
	days     int
	interval time.Duration
	gap      float64 // fraction of samples skipped to simulate downtime
}

func boxIDs(n, first int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", first+i)
	}
	return ids
}

// records returns every sample for one box, in timestamp order
func (g *generator) records(boxID string) []models.TrendRecord {
	end := g.start.AddDate(0, 0, g.days)
	var out []models.TrendRecord
	for t := g.start; t.Before(end); t = t.Add(g.interval) {
		if g.gap > 0 && g.rng.Float64() < g.gap {
			continue
		}
		out = append(out, g.sample(boxID, t))
	}
	return out
}

func (g *generator) sample(boxID string, t time.Time) models.TrendRecord {
	// Daily voltage sag in the early evening
	hour := float64(t.Hour()) + float64(t.Minute())/60
	sag := 1.5 * math.Cos((hour-18)*math.Pi/12)

	return models.TrendRecord{
		BoxID:       boxID,
		TimestampMs: t.UnixMilli(),
		Voltage:     g.channel(120-sag, 0.8),
		Frequency:   g.channel(60, 0.02),
		THD:         g.channel(0.02, 0.005),
	}
}

func (g *generator) channel(center, spread float64) *models.ChannelSample {
	avg := center + g.rng.NormFloat64()*spread/4
	return &models.ChannelSample{
		Min:     avg - g.rng.Float64()*spread,
		Max:     avg + g.rng.Float64()*spread,
		Average: avg,
	}
}

// batches splits records into TrendBatches of at most size records
func batches(records []models.TrendRecord, size int) []*models.TrendBatch {
	if size <= 0 {
		size = len(records)
	}
	var out []*models.TrendBatch
	for len(records) > 0 {
		n := min(size, len(records))
		out = append(out, &models.TrendBatch{
			BatchID: uuid.NewString(),
			Records: records[:n],
		})
		records = records[n:]
	}
	return out
}
