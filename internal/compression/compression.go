package compression

import (
	"errors"
	"fmt"
)

// Algorithm identifies a payload encoding. The value is written as the
// first byte of every framed payload, so it must stay stable.
type Algorithm uint8

const (
	None   Algorithm = 0
	Snappy Algorithm = 1
)

// ErrTooLarge is returned when a payload would decode past the size limit
var ErrTooLarge = errors.New("decoded payload exceeds size limit")

// Compressor interface for compression algorithms
type Compressor interface {
	// Compress compresses data
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the compression algorithm type
	Algorithm() Algorithm
}

// GetCompressor returns a compressor for the given algorithm. maxDecoded
// bounds decompressed sizes; zero means unlimited.
func GetCompressor(algo Algorithm, maxDecoded int) (Compressor, error) {
	switch algo {
	case None:
		return &NoneCompressor{maxDecoded: maxDecoded}, nil
	case Snappy:
		return NewSnappyCompressor(maxDecoded), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %d", algo)
	}
}

// NoneCompressor passes data through unchanged
type NoneCompressor struct {
	maxDecoded int
}

func (n *NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoneCompressor) Decompress(data []byte) ([]byte, error) {
	if n.maxDecoded > 0 && len(data) > n.maxDecoded {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), n.maxDecoded)
	}
	return data, nil
}

func (n *NoneCompressor) Algorithm() Algorithm {
	return None
}
