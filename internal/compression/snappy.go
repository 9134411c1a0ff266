package compression

import (
	"fmt"

	"github.com/golang/snappy"
)

// SnappyCompressor implements Compressor using the Snappy block format
type SnappyCompressor struct {
	maxDecoded int
}

// NewSnappyCompressor creates a Snappy compressor. maxDecoded bounds the
// decoded length read from the block header; zero means unlimited.
func NewSnappyCompressor(maxDecoded int) *SnappyCompressor {
	return &SnappyCompressor{maxDecoded: maxDecoded}
}

// Compress compresses data using Snappy
func (s *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	return snappy.Encode(nil, data), nil
}

// Decompress decompresses Snappy data, checking the declared length first
// so oversized payloads are rejected before allocating
func (s *SnappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	if s.maxDecoded > 0 && n > s.maxDecoded {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, n, s.maxDecoded)
	}

	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress failed: %w", err)
	}
	return decompressed, nil
}

// Algorithm returns Snappy
func (s *SnappyCompressor) Algorithm() Algorithm {
	return Snappy
}
