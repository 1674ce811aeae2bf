package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/objfile/zsect/errs"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec provides LZ4 block compression for sections whose embedded
// header carries a vendor-specific LZ4 type.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses the input data as a single LZ4 block.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := c.CompressInto(dst, data)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// CompressBound returns the maximum LZ4 block size for n input bytes.
func (c LZ4Codec) CompressBound(n int) int {
	return lz4.CompressBlockBound(n)
}

// CompressInto compresses data into dst, returning the produced length.
func (c LZ4Codec) CompressInto(dst, data []byte) (int, error) {
	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return 0, fmt.Errorf("lz4 compression of %d bytes failed: %w: %w",
			len(data), errs.ErrInvalidOperation, err)
	}
	if n == 0 && len(data) > 0 {
		// CompressBlock reports incompressible input as a zero-length
		// block. Store the bytes verbatim so the caller's size policy can
		// observe there was no gain; the copy fits because the bound is
		// never below the input length.
		n = copy(dst, data)
	}

	return n, nil
}

// Decompress decompresses a single LZ4 block. The decompressed size is not
// recorded in the block, so the buffer is grown geometrically until the
// block fits.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	const maxSize = 128 * 1024 * 1024 // 128MB safety limit

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if bufSize < maxSize {
				bufSize *= 2 // Double buffer size and retry
				continue
			}

			return nil, err
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}

// DecompressInto decompresses data into dst, which must be sized to the
// exact decompressed length. Sections record that size in their compression
// header, so no buffer probing is needed here.
func (c LZ4Codec) DecompressInto(dst, data []byte) error {
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrBadValue, err)
	}
	if n != len(dst) {
		return fmt.Errorf("decompressed to %d bytes, expected exactly %d: %w",
			n, len(dst), errs.ErrBadValue)
	}

	return nil
}
