package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpowerquality/opq-sub000/internal/ingest"
	"github.com/openpowerquality/opq-sub000/internal/queue"
)

func newTestGenerator(gap float64) *generator {
	return &generator{
		rng:      rand.New(rand.NewSource(1)),
		boxIDs:   boxIDs(2, 1000),
		start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		days:     1,
		interval: time.Minute,
		gap:      gap,
	}
}

func TestGenerator_Records(t *testing.T) {
	g := newTestGenerator(0)
	assert.Equal(t, []string{"1000", "1001"}, g.boxIDs)

	recs := g.records("1000")
	require.Len(t, recs, 1440)
	for i, r := range recs {
		require.NoError(t, r.Validate())
		assert.LessOrEqual(t, r.Voltage.Min, r.Voltage.Average)
		assert.GreaterOrEqual(t, r.Voltage.Max, r.Voltage.Average)
		if i > 0 {
			assert.Equal(t, recs[i-1].TimestampMs+60000, r.TimestampMs)
		}
	}
}

func TestGenerator_Gap(t *testing.T) {
	recs := newTestGenerator(0.5).records("1000")
	assert.Greater(t, len(recs), 500)
	assert.Less(t, len(recs), 940)
}

func TestBatches(t *testing.T) {
	recs := newTestGenerator(0).records("1000")

	bs := batches(recs, 500)
	require.Len(t, bs, 3)
	assert.Len(t, bs[2].Records, 440)
	assert.NotEqual(t, bs[0].BatchID, bs[1].BatchID)

	assert.Len(t, batches(recs, 0), 1)
	assert.Empty(t, batches(nil, 10))
}

func TestPublishBox(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	defer func() { _ = q.Close() }()

	codec := ingest.NewCodec(true)
	recs := newTestGenerator(0).records("1000")

	n, count, err := publishBox(context.Background(), q, codec, "opq.trends", recs, 50)
	require.NoError(t, err)
	assert.Equal(t, 29, n)
	assert.Equal(t, 1440, count)
	assert.Equal(t, 29, q.PendingCount("opq.trends"))

	// Published payloads decode back into batches
	got := make(chan int, 29)
	require.NoError(t, q.Subscribe("opq.trends", func(_ context.Context, msg *queue.Message) error {
		b, err := codec.Decode(msg.Data)
		if err != nil {
			return err
		}
		got <- len(b.Records)
		return nil
	}))

	total := 0
	for i := 0; i < 29; i++ {
		select {
		case n := <-got:
			total += n
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for batches")
		}
	}
	assert.Equal(t, 1440, total)
}
