package compress

import (
	"fmt"

	"github.com/objfile/zsect/errs"
)

// NoopCodec bypasses data without compression.
//
// It is useful for measuring pipeline overhead, for tests that need a
// predictable codec, and for formats that mark sections uncompressed while
// still routing them through the codec registry.
type NoopCodec struct{}

var _ Codec = NoopCodec{}

// NewNoopCodec creates a new no-operation codec that bypasses data.
func NewNoopCodec() NoopCodec {
	return NoopCodec{}
}

// Compress returns the input slice as-is without copying.
//
// The returned slice shares the input's memory; callers must not modify the
// input afterwards if they keep the result.
func (c NoopCodec) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// CompressBound returns n; a bypass never expands its input.
func (c NoopCodec) CompressBound(n int) int {
	return n
}

// CompressInto copies data into dst, returning the length copied.
func (c NoopCodec) CompressInto(dst, data []byte) (int, error) {
	if len(data) > len(dst) {
		return 0, fmt.Errorf("destination holds %d bytes, input needs %d: %w",
			len(dst), len(data), errs.ErrInvalidOperation)
	}

	return copy(dst, data), nil
}

// Decompress returns the input slice as-is without copying.
func (c NoopCodec) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// DecompressInto copies data into dst, which must be exactly the input
// length.
func (c NoopCodec) DecompressInto(dst, data []byte) error {
	if len(data) != len(dst) {
		return fmt.Errorf("bypass payload is %d bytes, expected exactly %d: %w",
			len(data), len(dst), errs.ErrBadValue)
	}
	copy(dst, data)

	return nil
}
