package compress

import (
	"fmt"

	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
)

// Compressor produces the compressed representation of section contents.
//
// Two call shapes are provided. Compress allocates its own result and is
// convenient for one-off use. CompressInto writes into a caller-provided
// destination sized by CompressBound, which lets the section commit path
// place the payload directly behind a compression header without an extra
// copy.
type Compressor interface {
	// Compress compresses data and returns a newly allocated result owned
	// by the caller. The input slice is not modified.
	Compress(data []byte) ([]byte, error)

	// CompressBound returns the maximum possible compressed size for an
	// input of n bytes. A destination of at least this size never fails
	// CompressInto for capacity reasons.
	CompressBound(n int) int

	// CompressInto compresses data into dst and returns the produced
	// length. dst must be at least CompressBound(len(data)) bytes; a
	// smaller destination is a caller contract violation and fails with an
	// error wrapping errs.ErrInvalidOperation, never a silent truncation.
	CompressInto(dst, data []byte) (int, error)
}

// Decompressor recovers section contents from their compressed
// representation.
type Decompressor interface {
	// Decompress decompresses data and returns a newly allocated result
	// owned by the caller. The input slice is not modified.
	Decompress(data []byte) ([]byte, error)

	// DecompressInto decompresses data into dst, whose length must be the
	// exact decompressed size. Success requires every input byte consumed,
	// dst exactly filled, and every compressed block cleanly terminated.
	// Any deviation fails with an error wrapping errs.ErrBadValue without
	// writing past dst.
	DecompressInto(dst, data []byte) error
}

// Codec combines both compression and decompression capabilities.
//
// Codec implementations are safe for concurrent use; implementations that
// need per-operation state draw it from internal pools.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoopCodec(),
	format.CompressionZlib: NewZlibCodec(),
	format.CompressionZstd: NewZstdCodec(),
	format.CompressionLZ4:  NewLZ4Codec(),
	format.CompressionS2:   NewS2Codec(),
}

// GetCodec retrieves the built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// compressIntoBuffer implements CompressInto for codecs whose underlying
// library only offers whole-buffer encoding: compress to a fresh slice,
// enforce the bound contract, and copy into dst.
func compressIntoBuffer(c Compressor, dst, data []byte) (int, error) {
	out, err := c.Compress(data)
	if err != nil {
		return 0, err
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("destination holds %d bytes, compressed result needs %d: %w",
			len(dst), len(out), errs.ErrInvalidOperation)
	}

	return copy(dst, out), nil
}

// decompressIntoExact implements DecompressInto for codecs whose underlying
// library only offers whole-buffer decoding, enforcing the exact-fill
// contract.
func decompressIntoExact(d Decompressor, dst, data []byte) error {
	out, err := d.Decompress(data)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrBadValue, err)
	}
	if len(out) != len(dst) {
		return fmt.Errorf("decompressed to %d bytes, expected exactly %d: %w",
			len(out), len(dst), errs.ErrBadValue)
	}
	copy(dst, out)

	return nil
}
