package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/ingest"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metadata"
	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/queue"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// publishChunk is how many encoded batches go into one PublishBatch call
const publishChunk = 16

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	numBoxes := flag.Int("boxes", 3, "Number of simulated boxes")
	firstBox := flag.Int("first-box", 1000, "Id of the first simulated box")
	start := flag.String("start", "", "First day: epoch ms, RFC3339 or YYYY-MM-DD (default: today minus -days)")
	days := flag.Int("days", 1, "Number of days to generate")
	interval := flag.Duration("interval", 0, "Sample spacing (default: trends.sampling_interval)")
	gap := flag.Float64("gap", 0, "Fraction of samples dropped to simulate downtime (0-1)")
	batchSize := flag.Int("batch", 500, "Records per published batch")
	register := flag.Bool("register", false, "Register the simulated boxes in the box registry")
	seed := flag.Int64("seed", 0, "Random seed (default: current time)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := logging.NewCLI(level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if *gap < 0 || *gap >= 1 {
		logger.Fatal("-gap must be in [0, 1)", "gap", *gap)
	}

	loc := cfg.Trends.GetLocation()
	startTime := time.Now().In(loc).AddDate(0, 0, -*days)
	if *start != "" {
		ms, err := utils.ParseTimeMs(*start, loc)
		if err != nil {
			logger.Fatal("Invalid -start", "error", err)
		}
		startTime = time.UnixMilli(ms).In(loc)
	}
	startTime = time.Date(startTime.Year(), startTime.Month(), startTime.Day(), 0, 0, 0, 0, loc)

	if *interval <= 0 {
		*interval = cfg.Trends.SamplingInterval
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	gen := &generator{
		rng:      rand.New(rand.NewSource(*seed)),
		boxIDs:   boxIDs(*numBoxes, *firstBox),
		start:    startTime,
		days:     *days,
		interval: *interval,
		gap:      *gap,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *register {
		if err := registerBoxes(ctx, cfg.Etcd, gen.boxIDs, logger); err != nil {
			logger.Fatal("Failed to register boxes", "error", err)
		}
	}

	pub, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "type", cfg.Queue.Type, "error", err)
	}
	defer func() { _ = pub.Close() }()

	codec := ingest.NewCodec(cfg.Ingest.Compress)
	logger.Info("Simulating trends",
		"boxes", len(gen.boxIDs),
		"start", startTime.Format(time.DateOnly),
		"days", *days,
		"interval", interval.String(),
		"subject", cfg.Ingest.Subject,
		"seed", *seed)

	var published, records int
	for _, boxID := range gen.boxIDs {
		n, count, err := publishBox(ctx, pub, codec, cfg.Ingest.Subject, gen.records(boxID), *batchSize)
		published += n
		records += count
		if err != nil {
			logger.Fatal("Publish failed", "box_id", boxID, "published", published, "error", err)
		}
		logger.Debug("Box published", "box_id", boxID, "records", count)
	}

	logger.Info("Simulation complete", "batches", published, "records", records)
}

// publishBox encodes one box's records into batches and publishes them in
// chunks. It returns the batches and records published.
func publishBox(ctx context.Context, pub queue.Publisher, codec *ingest.Codec, subject string, recs []models.TrendRecord, size int) (int, int, error) {
	var published, records int
	var chunk []queue.BatchMessage
	var chunkRecords int

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := pub.PublishBatch(ctx, chunk)
		published += n
		if n == len(chunk) {
			records += chunkRecords
		}
		chunk, chunkRecords = chunk[:0], 0
		return err
	}

	for _, b := range batches(recs, size) {
		data, err := codec.Encode(b)
		if err != nil {
			return published, records, err
		}
		chunk = append(chunk, queue.BatchMessage{Subject: subject, Data: data})
		chunkRecords += len(b.Records)
		if len(chunk) == publishChunk {
			if err := flush(); err != nil {
				return published, records, err
			}
		}
	}
	return published, records, flush()
}

func registerBoxes(ctx context.Context, cfg config.EtcdConfig, ids []string, logger *logging.Logger) error {
	registry, err := metadata.NewRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	for _, id := range ids {
		err := registry.RegisterBox(ctx, &models.Box{BoxID: id, Name: "Simulated box " + id})
		switch {
		case errors.Is(err, metadata.ErrBoxExists):
			logger.Debug("Box already registered", "box_id", id)
		case err != nil:
			return err
		default:
			logger.Info("Box registered", "box_id", id)
		}
	}
	return nil
}
