package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openpowerquality/opq-sub000/internal/compression"
	"github.com/openpowerquality/opq-sub000/internal/models"
	"github.com/openpowerquality/opq-sub000/internal/utils"
)

// Codec errors. All of them mark a message that can never be decoded.
var (
	ErrEmptyPayload    = errors.New("empty batch payload")
	ErrUnknownEncoding = errors.New("unknown batch encoding")
	ErrBatchTooLarge   = errors.New("batch exceeds record limit")
)

// Codec frames TrendBatch values for the queue. A frame is one algorithm
// byte (compression.None or compression.Snappy) followed by the JSON batch,
// compressed when the algorithm says so.
type Codec struct {
	encoder compression.Compressor
}

// NewCodec returns a codec that writes snappy frames when compress is set
// and plain JSON frames otherwise. Decode accepts both.
func NewCodec(compress bool) *Codec {
	algo := compression.None
	if compress {
		algo = compression.Snappy
	}
	enc, _ := compression.GetCompressor(algo, 0)
	return &Codec{encoder: enc}
}

// Encode serializes batch into a frame
func (c *Codec) Encode(batch *models.TrendBatch) ([]byte, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	payload, err := c.encoder.Compress(body)
	if err != nil {
		return nil, fmt.Errorf("failed to compress batch: %w", err)
	}

	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, byte(c.encoder.Algorithm()))
	return append(frame, payload...), nil
}

// Decode parses a frame written by any Codec
func (c *Codec) Decode(data []byte) (*models.TrendBatch, error) {
	if len(data) < 2 {
		return nil, ErrEmptyPayload
	}

	algo := compression.Algorithm(data[0])
	dec, err := compression.GetCompressor(algo, utils.MaxBatchBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEncoding, data[0])
	}

	body, err := dec.Decompress(data[1:])
	if err != nil {
		return nil, err
	}

	var batch models.TrendBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	if len(batch.Records) > utils.MaxBatchRecords {
		return nil, fmt.Errorf("%w: %d records", ErrBatchTooLarge, len(batch.Records))
	}
	return &batch, nil
}
