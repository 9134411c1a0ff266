package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/logging"
	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// Collection names shared with the OPQ view and mauka services
const (
	TrendsCollection    = "trends"
	EventsCollection    = "events"
	BoxEventsCollection = "box_events"
)

// occurrenceSource maps an occurrence kind to its collection and timestamp field
type occurrenceSource struct {
	collection string
	field      string
}

var occurrenceSources = map[models.OccurrenceKind]occurrenceSource{
	models.OccurrenceEvents:    {EventsCollection, "target_event_start_timestamp_ms"},
	models.OccurrenceBoxEvents: {BoxEventsCollection, "event_start_timestamp_ms"},
}

// MongoStore reads and writes the OPQ trends, events and box_events collections
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	trends *mongo.Collection
	cfg    config.MongoConfig
	logger *logging.Logger
}

// NewMongoStore connects, pings and ensures the trend index
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *logging.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client: client,
		db:     db,
		trends: db.Collection(TrendsCollection),
		cfg:    cfg,
		logger: logger,
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Mongo store connected", "database", cfg.Database)
	return s, nil
}

func (s *MongoStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// EnsureIndexes creates the {timestamp_ms, box_id} index used by range queries
// and the {box_id, timestamp_ms} index used by per-box upserts and inventory
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.trends.Indexes().CreateMany(ctx, trendIndexes())
	if err != nil {
		return fmt.Errorf("failed to create trend indexes: %w", err)
	}
	return nil
}

func trendIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp_ms", Value: 1}, {Key: "box_id", Value: 1}}},
		{Keys: bson.D{{Key: "box_id", Value: 1}, {Key: "timestamp_ms", Value: 1}}},
	}
}

// trendKeyFilter identifies one record for upsert
func trendKeyFilter(r *models.TrendRecord) bson.D {
	return bson.D{{Key: "box_id", Value: r.BoxID}, {Key: "timestamp_ms", Value: r.TimestampMs}}
}

// trendRangeFilter selects a box's records with startMs <= timestamp_ms <= endMs
func trendRangeFilter(boxID string, startMs, endMs int64) bson.D {
	return bson.D{
		{Key: "box_id", Value: boxID},
		{Key: "timestamp_ms", Value: bson.D{{Key: "$gte", Value: startMs}, {Key: "$lte", Value: endMs}}},
	}
}

// occurrenceFilter selects occurrences in [startMs, endMs]; endMs <= 0 is unbounded
func occurrenceFilter(field string, startMs, endMs int64) bson.D {
	bounds := bson.D{{Key: "$gte", Value: startMs}}
	if endMs > 0 {
		bounds = append(bounds, bson.E{Key: "$lte", Value: endMs})
	}
	return bson.D{{Key: field, Value: bounds}}
}

// InsertTrends upserts records keyed by (box_id, timestamp_ms)
func (s *MongoStore) InsertTrends(ctx context.Context, records []models.TrendRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			return 0, err
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(trendKeyFilter(r)).
			SetReplacement(r).
			SetUpsert(true))
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.trends.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("failed to write trends: %w", err)
	}
	return int(res.UpsertedCount + res.MatchedCount), nil
}

// FindTrends returns a box's records in [startMs, endMs] sorted by timestamp_ms
func (s *MongoStore) FindTrends(ctx context.Context, boxID string, startMs, endMs int64) ([]models.TrendRecord, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp_ms", Value: 1}})
	cursor, err := s.trends.Find(ctx, trendRangeFilter(boxID, startMs, endMs), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var records []models.TrendRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode trends: %w", err)
	}
	return records, nil
}

// findOne returns the first record matching filter in sort order, nil when none
func (s *MongoStore) findOne(ctx context.Context, filter bson.D, direction int) (*models.TrendRecord, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp_ms", Value: direction}})
	var r models.TrendRecord
	err := s.trends.FindOne(ctx, filter, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trend: %w", err)
	}
	return &r, nil
}

// MostRecentTrend returns the newest record across all boxes
func (s *MongoStore) MostRecentTrend(ctx context.Context) (*models.TrendRecord, error) {
	return s.findOne(ctx, bson.D{}, -1)
}

// Inventory returns count, oldest and newest record of a box
func (s *MongoStore) Inventory(ctx context.Context, boxID string) (*models.TrendInventory, error) {
	filter := bson.D{{Key: "box_id", Value: boxID}}

	cctx, cancel := s.opContext(ctx)
	count, err := s.trends.CountDocuments(cctx, filter)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to count trends for box %s: %w", boxID, err)
	}

	inv := &models.TrendInventory{BoxID: boxID, Count: count}
	if count == 0 {
		return inv, nil
	}
	if inv.Oldest, err = s.findOne(ctx, filter, 1); err != nil {
		return nil, err
	}
	if inv.Newest, err = s.findOne(ctx, filter, -1); err != nil {
		return nil, err
	}
	return inv, nil
}

// TotalTrends counts records across all boxes
func (s *MongoStore) TotalTrends(ctx context.Context) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.trends.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count trends: %w", err)
	}
	return n, nil
}

// BoxIDs lists distinct box ids in the trends collection
func (s *MongoStore) BoxIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var ids []string
	if err := s.trends.Distinct(ctx, "box_id", bson.D{}).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to list boxes: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// InsertOccurrences writes minimal event documents carrying the timestamp field of kind
func (s *MongoStore) InsertOccurrences(ctx context.Context, kind models.OccurrenceKind, boxID string, timestamps []int64) error {
	src, ok := occurrenceSources[kind]
	if !ok {
		return fmt.Errorf("unknown occurrence kind %q", kind)
	}
	if len(timestamps) == 0 {
		return nil
	}

	docs := make([]interface{}, len(timestamps))
	for i, ts := range timestamps {
		doc := bson.D{{Key: src.field, Value: ts}}
		if kind == models.OccurrenceBoxEvents {
			doc = append(doc, bson.E{Key: "box_id", Value: boxID})
		}
		docs[i] = doc
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if _, err := s.db.Collection(src.collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	return nil
}

// OccurrenceTimes returns timestamps of kind in [startMs, endMs]; endMs <= 0 is unbounded
func (s *MongoStore) OccurrenceTimes(ctx context.Context, kind models.OccurrenceKind, startMs, endMs int64) ([]int64, error) {
	src, ok := occurrenceSources[kind]
	if !ok {
		return nil, fmt.Errorf("unknown occurrence kind %q", kind)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	opts := options.Find().SetProjection(bson.D{{Key: src.field, Value: 1}, {Key: "_id", Value: 0}})
	cursor, err := s.db.Collection(src.collection).Find(ctx, occurrenceFilter(src.field, startMs, endMs), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var out []int64
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
		}
		if ts, ok := toMillis(doc[src.field]); ok {
			out = append(out, ts)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return out, nil
}

// toMillis accepts the numeric BSON types event timestamps have been stored as
func toMillis(v interface{}) (int64, bool) {
	return utils.ToInt64(v)
}

// Ping checks the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
