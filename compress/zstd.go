package compress

// ZstdCodec provides Zstandard compression for sections whose embedded
// header type selects it. Newer object-file producers emit zstd payloads
// behind embedded headers; the legacy header format never does.
//
// Concatenated frames are handled natively by the decoder, so the
// multi-block payload shape some producers emit decompresses the same way
// it does for zlib.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

// NewZstdCodec creates a new Zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}

// CompressBound returns the worst-case zstd output size for n input bytes:
// the raw-block expansion of 3 bytes per 128KiB window plus frame framing.
func (c ZstdCodec) CompressBound(n int) int {
	return n + n>>8 + 64
}

// CompressInto compresses data into dst, returning the produced length.
func (c ZstdCodec) CompressInto(dst, data []byte) (int, error) {
	return compressIntoBuffer(c, dst, data)
}

// DecompressInto decompresses data into dst, which must be sized to the
// exact decompressed total.
func (c ZstdCodec) DecompressInto(dst, data []byte) error {
	return decompressIntoExact(c, dst, data)
}
