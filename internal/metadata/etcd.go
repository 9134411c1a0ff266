package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/openpowerquality/opq-sub000/internal/config"
	"github.com/openpowerquality/opq-sub000/internal/models"
)

// DefaultPrefix is the etcd key prefix for box records
const DefaultPrefix = "/opq/boxes/"

// EtcdRegistry implements Registry using etcd. Each box is one JSON value
// under <prefix><box_id>.
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string
	cache  *TTLCache[models.Box] // nil when caching is disabled
}

// NewEtcdRegistry connects to etcd
func NewEtcdRegistry(cfg config.EtcdConfig) (*EtcdRegistry, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	r := &EtcdRegistry{client: client, prefix: prefix}
	if cfg.CacheTTL > 0 {
		r.cache = NewTTLCache[models.Box](cfg.CacheTTL)
	}
	return r, nil
}

func (r *EtcdRegistry) key(boxID string) string {
	return r.prefix + boxID
}

// RegisterBox stores a new box. The put is conditional on the key not existing.
func (r *EtcdRegistry) RegisterBox(ctx context.Context, box *models.Box) error {
	if err := ValidateBox(box); err != nil {
		return err
	}
	if box.CreatedAt.IsZero() {
		box.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(box)
	if err != nil {
		return fmt.Errorf("failed to marshal box: %w", err)
	}

	key := r.key(box.BoxID)
	resp, err := r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to store box in etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrBoxExists, box.BoxID)
	}

	if r.cache != nil {
		r.cache.Set(box.BoxID, *box)
	}
	return nil
}

// UpdateBox replaces an existing box
func (r *EtcdRegistry) UpdateBox(ctx context.Context, box *models.Box) error {
	if err := ValidateBox(box); err != nil {
		return err
	}

	data, err := json.Marshal(box)
	if err != nil {
		return fmt.Errorf("failed to marshal box: %w", err)
	}

	key := r.key(box.BoxID)
	resp, err := r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), ">", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to update box in etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrBoxNotFound, box.BoxID)
	}

	if r.cache != nil {
		r.cache.Set(box.BoxID, *box)
	}
	return nil
}

// GetBox reads a box, serving from cache when possible
func (r *EtcdRegistry) GetBox(ctx context.Context, boxID string) (*models.Box, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(boxID); ok {
			return &cached, nil
		}
	}

	resp, err := r.client.Get(ctx, r.key(boxID))
	if err != nil {
		return nil, fmt.Errorf("failed to get box from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBoxNotFound, boxID)
	}

	var box models.Box
	if err := json.Unmarshal(resp.Kvs[0].Value, &box); err != nil {
		return nil, fmt.Errorf("failed to unmarshal box %s: %w", boxID, err)
	}

	if r.cache != nil {
		r.cache.Set(boxID, box)
	}
	return &box, nil
}

// ListBoxes returns every registered box sorted by box id.
// Entries that fail to decode are skipped.
func (r *EtcdRegistry) ListBoxes(ctx context.Context) ([]*models.Box, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list boxes from etcd: %w", err)
	}

	boxes := make([]*models.Box, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var box models.Box
		if err := json.Unmarshal(kv.Value, &box); err != nil {
			continue
		}
		boxes = append(boxes, &box)
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].BoxID < boxes[j].BoxID })
	return boxes, nil
}

// DeleteBox removes a box
func (r *EtcdRegistry) DeleteBox(ctx context.Context, boxID string) error {
	resp, err := r.client.Delete(ctx, r.key(boxID))
	if err != nil {
		return fmt.Errorf("failed to delete box from etcd: %w", err)
	}
	if r.cache != nil {
		r.cache.Delete(boxID)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("%w: %s", ErrBoxNotFound, boxID)
	}
	return nil
}

// BoxExists reports whether a box is registered
func (r *EtcdRegistry) BoxExists(ctx context.Context, boxID string) (bool, error) {
	if r.cache != nil {
		if _, ok := r.cache.Get(boxID); ok {
			return true, nil
		}
	}

	resp, err := r.client.Get(ctx, r.key(boxID), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to check box existence: %w", err)
	}
	return resp.Count > 0, nil
}

// Close stops the cache and closes the etcd client
func (r *EtcdRegistry) Close() error {
	if r.cache != nil {
		r.cache.Stop()
	}
	return r.client.Close()
}
