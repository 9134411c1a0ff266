package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

// MemoryRegistry implements Registry in process memory
type MemoryRegistry struct {
	mu    sync.RWMutex
	boxes map[string]models.Box
}

// NewMemoryRegistry creates a registry pre-populated with boxes
func NewMemoryRegistry(boxes ...*models.Box) *MemoryRegistry {
	r := &MemoryRegistry{boxes: make(map[string]models.Box)}
	for _, b := range boxes {
		if ValidateBox(b) == nil {
			r.boxes[b.BoxID] = *b
		}
	}
	return r
}

func (r *MemoryRegistry) RegisterBox(_ context.Context, box *models.Box) error {
	if err := ValidateBox(box); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boxes[box.BoxID]; ok {
		return fmt.Errorf("%w: %s", ErrBoxExists, box.BoxID)
	}
	if box.CreatedAt.IsZero() {
		box.CreatedAt = time.Now().UTC()
	}
	r.boxes[box.BoxID] = *box
	return nil
}

func (r *MemoryRegistry) UpdateBox(_ context.Context, box *models.Box) error {
	if err := ValidateBox(box); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boxes[box.BoxID]; !ok {
		return fmt.Errorf("%w: %s", ErrBoxNotFound, box.BoxID)
	}
	r.boxes[box.BoxID] = *box
	return nil
}

func (r *MemoryRegistry) GetBox(_ context.Context, boxID string) (*models.Box, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	box, ok := r.boxes[boxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoxNotFound, boxID)
	}
	return &box, nil
}

func (r *MemoryRegistry) ListBoxes(_ context.Context) ([]*models.Box, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	boxes := make([]*models.Box, 0, len(r.boxes))
	for _, b := range r.boxes {
		b := b
		boxes = append(boxes, &b)
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].BoxID < boxes[j].BoxID })
	return boxes, nil
}

func (r *MemoryRegistry) DeleteBox(_ context.Context, boxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boxes[boxID]; !ok {
		return fmt.Errorf("%w: %s", ErrBoxNotFound, boxID)
	}
	delete(r.boxes, boxID)
	return nil
}

func (r *MemoryRegistry) BoxExists(_ context.Context, boxID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.boxes[boxID]
	return ok, nil
}

func (r *MemoryRegistry) Close() error { return nil }
