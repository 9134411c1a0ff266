package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openpowerquality/opq-sub000/internal/models"
)

var (
	// ErrBoxNotFound is returned for a box id missing from the registry
	ErrBoxNotFound = errors.New("box not found")
	// ErrBoxExists is returned when registering a box id twice
	ErrBoxExists = errors.New("box already registered")
	// ErrInvalidBox is returned for a registry entry without a usable box id
	ErrInvalidBox = errors.New("invalid box")
)

// Registry stores the OPQ Box registry
type Registry interface {
	RegisterBox(ctx context.Context, box *models.Box) error
	UpdateBox(ctx context.Context, box *models.Box) error
	GetBox(ctx context.Context, boxID string) (*models.Box, error)
	ListBoxes(ctx context.Context) ([]*models.Box, error)
	DeleteBox(ctx context.Context, boxID string) error
	BoxExists(ctx context.Context, boxID string) (bool, error)

	// Lifecycle
	Close() error
}

// ValidateBox checks the fields every registry entry needs
func ValidateBox(box *models.Box) error {
	if box == nil {
		return fmt.Errorf("%w: nil box", ErrInvalidBox)
	}
	if strings.TrimSpace(box.BoxID) == "" {
		return fmt.Errorf("%w: box_id is required", ErrInvalidBox)
	}
	if strings.Contains(box.BoxID, "/") {
		return fmt.Errorf("%w: box_id %q must not contain '/'", ErrInvalidBox, box.BoxID)
	}
	return nil
}

// AssertValidBoxIDs returns ErrBoxNotFound naming the first unregistered id
func AssertValidBoxIDs(ctx context.Context, r Registry, boxIDs ...string) error {
	for _, id := range boxIDs {
		ok, err := r.BoxExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrBoxNotFound, id)
		}
	}
	return nil
}

// BoxIDs lists the ids of every registered box in registry order
func BoxIDs(ctx context.Context, r Registry) ([]string, error) {
	boxes, err := r.ListBoxes(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(boxes))
	for i, b := range boxes {
		ids[i] = b.BoxID
	}
	return ids, nil
}
