package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/metrics"
	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/queue"
)

// TrendWriter is the storage side of ingest
type TrendWriter interface {
	InsertTrends(ctx context.Context, records []models.TrendRecord) (int, error)
}

// BoxChecker answers whether a box id is registered
type BoxChecker interface {
	BoxExists(ctx context.Context, boxID string) (bool, error)
}

// Service moves trend batches from the queue into the store
type Service struct {
	cfg     config.IngestConfig
	sub     queue.Subscriber
	store   TrendWriter
	boxes   BoxChecker
	codec   *Codec
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// Result summarizes the handling of one batch
type Result struct {
	BatchID    string
	Received   int
	Stored     int
	Invalid    int
	UnknownBox int
}

// NewService wires an ingest worker. boxes may be nil when cfg.VerifyBoxes
// is off.
func NewService(cfg config.IngestConfig, sub queue.Subscriber, store TrendWriter, boxes BoxChecker, m *metrics.Metrics, logger *logging.Logger) (*Service, error) {
	if cfg.VerifyBoxes && boxes == nil {
		return nil, errors.New("box verification enabled without a registry")
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Service{
		cfg:     cfg,
		sub:     sub,
		store:   store,
		boxes:   boxes,
		codec:   NewCodec(cfg.Compress),
		metrics: m,
		logger:  logger.With("component", "ingest"),
	}, nil
}

// Start subscribes to the configured subject
func (s *Service) Start() error {
	if err := s.sub.Subscribe(s.cfg.Subject, s.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.logger.Info("Ingest subscribed", "subject", s.cfg.Subject, "verify_boxes", s.cfg.VerifyBoxes)
	return nil
}

// Stop unsubscribes from the configured subject
func (s *Service) Stop() error {
	return s.sub.Unsubscribe(s.cfg.Subject)
}

// HandleMessage is the queue handler. Undecodable payloads are dropped with
// a permanent error; store and registry failures are returned as-is so the
// transport redelivers.
func (s *Service) HandleMessage(ctx context.Context, msg *queue.Message) error {
	s.metrics.BatchesReceived.Inc()

	batch, err := s.codec.Decode(msg.Data)
	if err != nil {
		s.metrics.RecordsDropped.WithLabelValues(metrics.ReasonDecode).Inc()
		s.logger.Warn("Dropping undecodable batch", "subject", msg.Subject, "bytes", len(msg.Data), "error", err)
		return queue.Permanent(err)
	}

	res, err := s.Ingest(ctx, batch)
	if err != nil {
		s.metrics.BatchesFailed.Inc()
		s.logger.Error("Batch ingest failed",
			"batch_id", batch.BatchID,
			"attempt", msg.Attempt,
			"error", err)
		return err
	}

	s.logger.Debug("Batch ingested",
		"batch_id", res.BatchID,
		"received", res.Received,
		"stored", res.Stored,
		"invalid", res.Invalid,
		"unknown_box", res.UnknownBox)
	return nil
}

// Ingest validates a decoded batch, filters unknown boxes and stores the rest
func (s *Service) Ingest(ctx context.Context, batch *models.TrendBatch) (*Result, error) {
	res := &Result{BatchID: batch.BatchID, Received: len(batch.Records)}

	valid := make([]models.TrendRecord, 0, len(batch.Records))
	for _, r := range batch.Records {
		if err := r.Validate(); err != nil {
			res.Invalid++
			continue
		}
		valid = append(valid, r)
	}

	if s.cfg.VerifyBoxes {
		known, err := s.knownBoxes(ctx, valid)
		if err != nil {
			return nil, err
		}
		kept := valid[:0]
		for _, r := range valid {
			if known[r.BoxID] {
				kept = append(kept, r)
			} else {
				res.UnknownBox++
			}
		}
		valid = kept
	}

	if res.Invalid > 0 {
		s.metrics.RecordsDropped.WithLabelValues(metrics.ReasonInvalid).Add(float64(res.Invalid))
	}
	if res.UnknownBox > 0 {
		s.metrics.RecordsDropped.WithLabelValues(metrics.ReasonUnknownBox).Add(float64(res.UnknownBox))
	}
	if len(valid) == 0 {
		return res, nil
	}

	writeCtx := ctx
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}

	start := time.Now()
	stored, err := s.store.InsertTrends(writeCtx, valid)
	s.metrics.InsertDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to store batch %s: %w", batch.BatchID, err)
	}

	res.Stored = stored
	s.metrics.RecordsStored.Add(float64(stored))
	return res, nil
}

// knownBoxes checks each distinct box id of records once
func (s *Service) knownBoxes(ctx context.Context, records []models.TrendRecord) (map[string]bool, error) {
	known := make(map[string]bool)
	for _, r := range records {
		if _, seen := known[r.BoxID]; seen {
			continue
		}
		ok, err := s.boxes.BoxExists(ctx, r.BoxID)
		if err != nil {
			return nil, fmt.Errorf("failed to verify box %s: %w", r.BoxID, err)
		}
		known[r.BoxID] = ok
	}
	return known, nil
}
